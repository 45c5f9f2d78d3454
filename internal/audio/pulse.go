// Package audio discovers PulseAudio input sources and resolves the configured input
// preference into the device name sent with each live session.
package audio

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// Lister fetches the current input sources.
type Lister func(context.Context) ([]Device, error)

type listResult struct {
	devices []Device
	err     error
}

// ListDevices returns available Pulse input sources with default/availability metadata.
// The pulse protocol has no cancellation, so ctx only bounds how long the caller waits.
func ListDevices(ctx context.Context) ([]Device, error) {
	resultCh := make(chan listResult, 1)
	go func() {
		devices, err := listPulseSources()
		resultCh <- listResult{devices: devices, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list audio devices: %w", ctx.Err())
	case result := <-resultCh:
		return result.devices, result.err
	}
}

func listPulseSources() ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("listend"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(reply))
	for _, info := range reply {
		if info == nil || isMonitorSource(info.SourceName) {
			continue
		}
		devices = append(devices, fromSourceInfo(info, def.ID()))
	}
	sortDevices(devices)
	return devices, nil
}

func fromSourceInfo(info *pulseproto.GetSourceInfoReply, defaultID string) Device {
	return Device{
		ID:          info.SourceName,
		Description: info.Device,
		State:       sourceStateString(info.State),
		Available:   sourceAvailable(info),
		Muted:       info.Mute,
		Default:     info.SourceName == defaultID,
	}
}

// sortDevices puts the default source first, then orders by id.
func sortDevices(devices []Device) {
	slices.SortStableFunc(devices, func(a, b Device) int {
		switch {
		case a.Default == b.Default:
			return cmp.Compare(a.ID, b.ID)
		case a.Default:
			return -1
		default:
			return 1
		}
	})
}

// isMonitorSource reports whether a source mirrors a sink rather than capturing input.
func isMonitorSource(name string) bool {
	return strings.HasSuffix(name, ".monitor")
}

// SelectDevice resolves audio.input/audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	return Resolve(ctx, ListDevices, input, fallback)
}

// Resolve is SelectDevice against an arbitrary device source.
func Resolve(ctx context.Context, list Lister, input string, fallback string) (Selection, error) {
	devices, err := list(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// FormatDevices renders devices as an aligned table for the devices command.
func FormatDevices(devices []Device) string {
	if len(devices) == 0 {
		return "no audio input devices found\n"
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEFAULT\tID\tDESCRIPTION\tSTATE\tFLAGS")
	for _, dev := range devices {
		marker := ""
		if dev.Default {
			marker = "*"
		}
		flags := make([]string, 0, 2)
		if !dev.Available {
			flags = append(flags, "unavailable")
		}
		if dev.Muted {
			flags = append(flags, "muted")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, dev.ID, dev.Description, dev.State, strings.Join(flags, ","))
	}
	_ = tw.Flush()
	return b.String()
}

// selectDeviceFromList applies selection policy to a pre-fetched device list. An
// input of "" or "default" means the server's default source. When the chosen source
// is muted or unavailable, the fallback preference is tried the same way.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}
	input, fallback = normalizePreference(input), normalizePreference(fallback)

	primary, err := pick(devices, input)
	if err != nil {
		return Selection{}, err
	}
	if primary == nil {
		return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
	}
	why := primary.problem()
	if why == "" {
		return Selection{Device: *primary}, nil
	}

	alt, err := pick(devices, fallback)
	switch {
	case err != nil:
		return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, why, err)
	case alt == nil:
		return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, why, fallback)
	}
	if altWhy := alt.problem(); altWhy != "" {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", alt.ID, altWhy)
	}

	return Selection{
		Device:   *alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, why, alt.ID),
		Fallback: primary.ID != alt.ID,
	}, nil
}

func normalizePreference(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "default" {
		return ""
	}
	return raw
}

// pick returns the default source for an empty term, otherwise the first device the
// term matches. A nil device with a nil error means nothing matched.
func pick(devices []Device, term string) (*Device, error) {
	for i := range devices {
		if term == "" && devices[i].Default {
			return &devices[i], nil
		}
		if term != "" && deviceMatches(devices[i], term) {
			return &devices[i], nil
		}
	}
	if term == "" {
		return nil, errors.New("default audio source is unavailable")
	}
	return nil, nil
}

// problem names why the device cannot capture, or "" when it can.
func (d Device) problem() string {
	switch {
	case d.Muted:
		return "muted"
	case !d.Available:
		return "unavailable"
	default:
		return ""
	}
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
