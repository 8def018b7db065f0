package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/finpal/internal/model"
)

func TestNotifyAndExpire(t *testing.T) {
	m := New(10 * time.Millisecond)
	cmd := m.Notify(model.Notification{AgentID: model.AgentLuna, Title: "Budget alert", Message: "Dining is at 90%."})
	require.NotNil(t, cmd)
	assert.Equal(t, 1, m.Len())
	assert.Contains(t, m.View(), "Budget alert")
	assert.Contains(t, m.View(), "Dining is at 90%.")

	msg := cmd()
	assert.Equal(t, ExpireMsg{ID: 1}, msg)
	m, _ = m.Update(msg)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.View())
}

func TestStackIsCapped(t *testing.T) {
	m := New(time.Minute)
	for _, s := range []string{"one", "two", "three", "four"} {
		m.Info(s)
	}
	assert.Equal(t, maxVisible, m.Len())
	out := m.View()
	assert.NotContains(t, out, "one")
	assert.Contains(t, out, "four")

	// Expiring a notice that already dropped off is a no-op.
	m, _ = m.Update(ExpireMsg{ID: 1})
	assert.Equal(t, maxVisible, m.Len())
}

func TestPersistentSurvivesExpiry(t *testing.T) {
	m := New(time.Minute)
	m.SetPersistent("Lost connection to server. Please restart.")
	m.Error("oops")
	m, _ = m.Update(ExpireMsg{ID: 1})

	assert.Equal(t, 0, m.Len())
	assert.Contains(t, m.View(), "Please restart.")

	m.SetPersistent("")
	assert.Empty(t, m.View())
}
