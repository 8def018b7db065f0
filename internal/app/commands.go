package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/finpal/internal/demo"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/ui/devpanel"
)

// triggerTimeout bounds a demo trigger issued from the palette.
const triggerTimeout = 10 * time.Second

// flagNames maps palette flag names to patches.
var flagNames = map[string]func(bool) model.UXFlagsPatch{
	"drawer":  func(v bool) model.UXFlagsPatch { return model.UXFlagsPatch{AutoOpenDrawer: &v} },
	"chat":    func(v bool) model.UXFlagsPatch { return model.UXFlagsPatch{AutoOpenChat: &v} },
	"preview": func(v bool) model.UXFlagsPatch { return model.UXFlagsPatch{InlinePreview: &v} },
}

func commandSuggestions() []string {
	out := []string{
		"refresh", "reconnect", "quiz", "notifications", "dev", "help",
		"read all", "clear all", "reset profile", "quit",
	}
	for _, id := range model.AgentIDs() {
		out = append(out, "chat "+string(id))
	}
	for _, s := range demo.Scenarios {
		out = append(out, "trigger "+s.Name)
	}
	for _, name := range []string{"drawer", "chat", "preview"} {
		out = append(out, "flag "+name+" on", "flag "+name+" off")
	}
	return out
}

// executeCommand runs a palette command. Unknown or malformed commands
// keep the palette open with a hint.
func (m *Model) executeCommand(line string) tea.Cmd {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil
	}
	m.overlay = OverlayNone

	switch fields[0] {
	case "refresh", "sync":
		m.header.SetSync("refreshing")
		return m.poller.Refresh()
	case "reconnect":
		m.hub.Reconnect()
		m.toasts.SetPersistent("")
		return m.toasts.Info("Reconnecting…")
	case "quiz":
		return m.openQuiz()
	case "notifications", "drawer":
		m.drawer.Reset()
		m.overlay = OverlayDrawer
		return nil
	case "dev":
		m.overlay = OverlayDevPanel
		return nil
	case "help":
		m.overlay = OverlayHelp
		return nil
	case "quit", "q":
		return m.quit()
	case "read":
		if len(fields) == 2 && fields[1] == "all" {
			m.hub.MarkAllAsRead()
			return m.toasts.Info("All notifications marked as read")
		}
	case "clear":
		if len(fields) == 2 && fields[1] == "all" {
			m.hub.ClearAll()
			return m.toasts.Info("Notifications cleared")
		}
	case "reset":
		if len(fields) == 2 && fields[1] == "profile" {
			return m.resetProfile()
		}
	case "chat":
		if len(fields) == 2 {
			if _, ok := model.Agents[model.AgentID(fields[1])]; ok {
				return m.dashboard.OpenChat(model.AgentID(fields[1]))
			}
		}
	case "trigger":
		if len(fields) == 2 {
			if _, ok := demo.Lookup(fields[1]); ok {
				return m.trigger(fields[1])
			}
		}
	case "flag":
		if len(fields) == 3 {
			patch, ok := flagNames[fields[1]]
			if ok && (fields[2] == "on" || fields[2] == "off") {
				m.hub.SetFlags(patch(fields[2] == "on"))
				return m.toasts.Info(fmt.Sprintf("%s %s", fields[1], fields[2]))
			}
		}
	}

	m.overlay = OverlayCommand
	m.command.SetHint("unknown command: " + line)
	return nil
}

func (m Model) trigger(scenario string) tea.Cmd {
	h := m.hub
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		n, err := h.TriggerDemo(ctx, scenario)
		return devpanel.TriggeredMsg{Scenario: scenario, Notification: n, Err: err}
	}
}

// resetProfile forgets the stored quiz; the empty reload sends the user
// back through onboarding.
func (m Model) resetProfile() tea.Cmd {
	profiles := m.profiles
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := profiles.ClearProfile(ctx); err != nil {
			return profileLoadedMsg{err: err}
		}
		return profileLoadedMsg{}
	}
}
