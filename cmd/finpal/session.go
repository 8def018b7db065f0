package main

import (
	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/api"
	"github.com/nhle/finpal/internal/credential"
	"github.com/nhle/finpal/internal/dispatch"
	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/model"
)

// newClient builds the REST client with whatever token is configured.
// A missing keyring is not fatal; the backend may not need auth.
func newClient() *api.Client {
	return api.NewClient(cfg.Server.BaseURL, resolveToken())
}

func resolveToken() string {
	// The environment wins without touching the keyring.
	if tok, _ := credential.APIToken(nil); tok != "" {
		return tok
	}
	vault, err := credential.Open()
	if err != nil {
		logger.Debug("keyring unavailable", zap.Error(err))
		return ""
	}
	tok, err := credential.APIToken(vault)
	if err != nil {
		logger.Warn("reading api token", zap.Error(err))
		return ""
	}
	return tok
}

// newHub builds the session hub. effects receives dispatcher output.
func newHub(client *api.Client, effects dispatch.Effects) *hub.Hub {
	return hub.New(hub.Options{
		WSURL:     cfg.Server.WSURL,
		Channel:   cfg.Channel,
		Flags:     cfg.Flags,
		Preview:   cfg.Preview.TTL(),
		Requester: client,
		Effects:   effects,
		Logger:    logger,
	})
}

// watchFlags applies edits to the flags section of the config file while
// the session runs.
func watchFlags(h *hub.Hub) {
	err := model.WatchFlags(configPath, func(f model.UXFlags) {
		logger.Info("flags reloaded",
			zap.Bool("auto_open_drawer", f.AutoOpenDrawer),
			zap.Bool("auto_open_chat", f.AutoOpenChat),
			zap.Bool("inline_preview", f.InlinePreview),
		)
		h.SetFlags(model.PatchFrom(f))
	})
	if err != nil {
		logger.Debug("config watch disabled", zap.Error(err))
	}
}
