package uxflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/finpal/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestUpdateMergesPartialPatch(t *testing.T) {
	f := New(model.DefaultUXFlags())

	got := f.Update(model.UXFlagsPatch{AutoOpenChat: boolPtr(true)})

	assert.Equal(t, model.UXFlags{AutoOpenChat: true, InlinePreview: true}, got)
	assert.Equal(t, got, f.Get())

	got = f.Update(model.UXFlagsPatch{InlinePreview: boolPtr(false)})
	assert.Equal(t, model.UXFlags{AutoOpenChat: true}, got)
}

func TestUpdateNotifiesOnlyOnChange(t *testing.T) {
	f := New(model.DefaultUXFlags())

	var seen []model.UXFlags
	unsubscribe := f.Subscribe(func(flags model.UXFlags) { seen = append(seen, flags) })

	f.Update(model.UXFlagsPatch{InlinePreview: boolPtr(true)}) // already true
	f.Update(model.UXFlagsPatch{AutoOpenDrawer: boolPtr(true)})
	f.Update(model.UXFlagsPatch{})

	require.Len(t, seen, 1)
	assert.True(t, seen[0].AutoOpenDrawer)

	unsubscribe()
	f.Update(model.UXFlagsPatch{AutoOpenDrawer: boolPtr(false)})
	assert.Len(t, seen, 1)
}

func TestPatchFromReplacesEveryField(t *testing.T) {
	f := New(model.DefaultUXFlags())
	want := model.UXFlags{AutoOpenDrawer: true, AutoOpenChat: true, InlinePreview: false}

	assert.Equal(t, want, f.Update(model.PatchFrom(want)))
}
