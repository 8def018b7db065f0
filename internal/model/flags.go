package model

// UXFlags are the session-wide behavior switches read by the side-effect
// dispatcher.
type UXFlags struct {
	AutoOpenDrawer bool `mapstructure:"auto_open_drawer" yaml:"auto_open_drawer"`
	AutoOpenChat   bool `mapstructure:"auto_open_chat" yaml:"auto_open_chat"`
	InlinePreview  bool `mapstructure:"inline_preview" yaml:"inline_preview"`
}

// DefaultUXFlags returns the flags a fresh session starts with.
func DefaultUXFlags() UXFlags {
	return UXFlags{InlinePreview: true}
}

// UXFlagsPatch is a partial update; nil fields keep their current value.
type UXFlagsPatch struct {
	AutoOpenDrawer *bool
	AutoOpenChat   *bool
	InlinePreview  *bool
}

// Apply merges the patch into f and returns the result.
func (p UXFlagsPatch) Apply(f UXFlags) UXFlags {
	if p.AutoOpenDrawer != nil {
		f.AutoOpenDrawer = *p.AutoOpenDrawer
	}
	if p.AutoOpenChat != nil {
		f.AutoOpenChat = *p.AutoOpenChat
	}
	if p.InlinePreview != nil {
		f.InlinePreview = *p.InlinePreview
	}
	return f
}

// PatchFrom builds a patch that sets every field to the values in f.
func PatchFrom(f UXFlags) UXFlagsPatch {
	return UXFlagsPatch{
		AutoOpenDrawer: &f.AutoOpenDrawer,
		AutoOpenChat:   &f.AutoOpenChat,
		InlinePreview:  &f.InlinePreview,
	}
}
