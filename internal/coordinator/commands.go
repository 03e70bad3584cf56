package coordinator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rileyhilliard/bealink/internal/agent"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/mac"
	"github.com/rileyhilliard/bealink/internal/state"
	"github.com/rileyhilliard/bealink/internal/util"
	"github.com/rileyhilliard/bealink/internal/wol"
)

// Action names, shown while a command is in flight.
const (
	ActionWake     = "wake"
	ActionSleep    = "sleep"
	ActionShutdown = "shutdown"
	ActionDisplay  = "display"
	ActionClipPush = "clip push"
	ActionClipPull = "clip pull"
)

// PreviewRunes is how much clipboard text a notice shows.
const PreviewRunes = 50

// ClipAckPrefix is the acknowledgement the agent puts in front of the
// clipboard text it received.
const ClipAckPrefix = "已复制到剪贴板 📋: "

// Shutdown asks the device's agent to power off.
func (c *Coordinator) Shutdown(ctx context.Context, id string) (string, error) {
	body, err := c.dispatch(ctx, id, ActionShutdown, c.agent.Shutdown)
	if err != nil {
		return "", err
	}
	return c.done(id, "Shutdown command sent: "+strings.TrimSpace(body)), nil
}

// Sleep asks the device's agent to suspend.
func (c *Coordinator) Sleep(ctx context.Context, id string) (string, error) {
	body, err := c.dispatch(ctx, id, ActionSleep, c.agent.Sleep)
	if err != nil {
		return "", err
	}
	return c.done(id, "Sleep command sent: "+strings.TrimSpace(body)), nil
}

// ToggleMonitor asks the device's agent to switch its display on or off.
func (c *Coordinator) ToggleMonitor(ctx context.Context, id string) (string, error) {
	body, err := c.dispatch(ctx, id, ActionDisplay, c.agent.ToggleMonitor)
	if err != nil {
		return "", err
	}
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = "Display toggled"
	}
	return c.done(id, msg), nil
}

// PushClipboard sends content to the device's clipboard.
func (c *Coordinator) PushClipboard(ctx context.Context, id, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		err := errors.New(errors.ErrValidation, "Clipboard is empty", "Copy some text first")
		c.state.Error(id, errors.Message(err))
		return "", err
	}

	body, err := c.dispatch(ctx, id, ActionClipPush, func(ctx context.Context, ip string) (string, error) {
		return c.agent.PushClipboard(ctx, ip, content)
	})
	if err != nil {
		return "", err
	}

	echoed := strings.TrimPrefix(body, ClipAckPrefix)
	if strings.TrimSpace(echoed) == "" {
		echoed = content
	}
	return c.done(id, "Sent📋: "+util.Truncate(echoed, PreviewRunes)), nil
}

// PullClipboard returns the device's clipboard text.
func (c *Coordinator) PullClipboard(ctx context.Context, id string) (string, error) {
	content, err := c.dispatch(ctx, id, ActionClipPull, c.agent.PullClipboard)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		c.state.Info(id, "Device clipboard is empty")
		return "", nil
	}
	c.done(id, "Received📋: "+util.Truncate(content, PreviewRunes))
	return content, nil
}

// Wake broadcasts a magic packet for the device. It needs a MAC but no
// address, and works on a device marked offline.
func (c *Coordinator) Wake(ctx context.Context, id string) (string, error) {
	v, ok := c.state.Get(id)
	if !ok {
		return "", unknownDevice(id)
	}
	name := v.Device.DisplayName()

	if !v.Device.HasMAC() {
		err := errors.New(errors.ErrValidation,
			"Cannot wake "+name+": no MAC configured",
			"Add a MAC address with 'bealink device edit'")
		c.state.Error(id, errors.Message(err))
		return "", err
	}

	if err := c.begin(v, ActionWake); err != nil {
		return "", err
	}
	defer c.state.SetAction(id, "")

	var (
		sent int
		errs []error
	)
	for _, target := range wol.Targets(c.opts.Broadcast) {
		if err := c.waker.Send(ctx, v.Device.MAC, target); err != nil {
			c.log.Debug("coordinator: wake %s via %s failed: %s", name, target, errors.Message(err))
			errs = append(errs, err)
			continue
		}
		sent++
	}

	if sent == 0 {
		msg := "Failed to send magic packet to " + name
		c.state.Error(id, msg)
		return "", errors.WrapWithCode(stderrors.Join(errs...), errors.ErrTransport, msg,
			"Check this machine is on the same network as the device")
	}
	return c.done(id, fmt.Sprintf("Magic packet sent to %s (%s)", name, mac.Display(v.Device.MAC))), nil
}

type call func(ctx context.Context, ip string) (string, error)

// dispatch runs fn against the device's address with the action flag set.
// It refuses devices with no address and devices marked offline.
func (c *Coordinator) dispatch(ctx context.Context, id, action string, fn call) (string, error) {
	v, ok := c.state.Get(id)
	if !ok {
		return "", unknownDevice(id)
	}
	name := v.Device.DisplayName()

	addr := v.Address()
	if addr == "" {
		err := errors.New(errors.ErrValidation,
			fmt.Sprintf("Cannot run '%s': %s has no valid IP address", action, name),
			"Wait for discovery to find it, or set its hostname to an IP address")
		c.state.Error(id, errors.Message(err))
		return "", err
	}
	if !v.Health.Online {
		err := errors.New(errors.ErrDevice,
			fmt.Sprintf("%s is offline, cannot run '%s'", name, action),
			"Wake it first with 'bealink wake'")
		c.state.Error(id, errors.Message(err))
		return "", err
	}

	if err := c.begin(v, action); err != nil {
		return "", err
	}
	defer c.state.SetAction(id, "")

	body, err := fn(ctx, addr)
	if err != nil {
		msg := fmt.Sprintf("'%s' failed (%s)", action, name)
		c.state.Error(id, msg+": "+errors.Message(err))
		return "", errors.WrapWithCode(err, codeFor(err), msg, "")
	}
	return body, nil
}

// begin marks action in flight, refusing when another command holds it.
func (c *Coordinator) begin(v state.View, action string) error {
	if c.state.TryStartAction(v.Device.ID, action) {
		return nil
	}
	current := action
	if now, ok := c.state.Get(v.Device.ID); ok && now.Action != "" {
		current = now.Action
	}
	err := errors.New(errors.ErrDevice,
		fmt.Sprintf("%s is busy with '%s', cannot run '%s'", v.Device.DisplayName(), current, action),
		"")
	c.state.Error(v.Device.ID, errors.Message(err))
	return err
}

func (c *Coordinator) done(id, msg string) string {
	c.state.Info(id, msg)
	return msg
}

func codeFor(err error) string {
	var re *agent.RequestError
	if !stderrors.As(err, &re) {
		return errors.ErrTransport
	}
	switch re.Kind {
	case agent.KindValidation:
		return errors.ErrValidation
	case agent.KindProtocol:
		return errors.ErrProtocol
	default:
		return errors.ErrTransport
	}
}
