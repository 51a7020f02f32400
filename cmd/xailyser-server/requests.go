package main

import (
	"sync"

	"github.com/negbie/logp"

	"github.com/sipcapture/xailyser/internal/capture"
	"github.com/sipcapture/xailyser/internal/config"
	"github.com/sipcapture/xailyser/internal/transport"
)

// runtimeState holds the mutable pieces of server config a connected
// client can change over the control channel (spec.md §6's
// ChangePassword/SetCompression/SetInterface/SaveConfig requests).
type runtimeState struct {
	mu             sync.Mutex
	cfg            *config.ServerConfig
	configPath     string
	passwordDigest string
}

func newRuntimeState(cfg *config.ServerConfig, configPath, passwordDigest string) *runtimeState {
	return &runtimeState{cfg: cfg, configPath: configPath, passwordDigest: passwordDigest}
}

// PasswordDigest returns the current wire AUTH-KEY digest. It is passed to
// transport.Handler as a live accessor (not a frozen string) so a
// ChangePassword request takes effect on the next connection attempt
// instead of only on the next `serve` invocation.
func (r *runtimeState) PasswordDigest() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passwordDigest
}

func (r *runtimeState) snapshotSettings(compressionActive bool) transport.ServerSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	available, err := capture.ListInterfaces()
	if err != nil {
		logp.Warn("list interfaces: %v", err)
	}
	return transport.ServerSettings{
		CompressionActive:   compressionActive,
		CompressionConfig:   r.cfg.Listen.CompressionActive,
		InterfaceActive:     r.cfg.Capture.Interface,
		InterfaceConfig:     r.cfg.Capture.Interface,
		InterfacesAvailable: available,
	}
}

// handleRequest dispatches one ClientRequest to its response, mutating
// runtime state as needed. It never changes the live capture.Worker
// in-place — a SetInterface/SetCompression change takes effect on the
// next `serve` invocation. The result reports back only the requested
// value.
func (r *runtimeState) handleRequest(sess *transport.ServerSession, compressionActive bool, req transport.ClientRequest) transport.ServerMessage {
	switch req.Kind {
	case transport.RequestChangePassword:
		hash, err := config.HashPassword(req.NewPassword)
		if err != nil {
			logp.Warn("hash new password: %v", err)
			e := transport.ErrFailedToChangePassword
			return transport.ErrorMessage(e)
		}
		digest := transport.DigestPassword(req.NewPassword)
		r.mu.Lock()
		r.cfg.Password = hash
		r.cfg.PasswordDigest = digest
		r.passwordDigest = digest
		r.mu.Unlock()
		return transport.ChangePasswordConfirmationMessage()

	case transport.RequestReboot:
		// Rebooting the capture process from an inspection client is out
		// of scope for this passive analyzer: acknowledged, no-op.
		return transport.SyncSuccessfulMessage()

	case transport.RequestSaveConfig:
		r.mu.Lock()
		err := config.SaveServer(r.cfg, r.configPath)
		r.mu.Unlock()
		if err != nil {
			logp.Warn("save config: %v", err)
			e := transport.ErrFailedToSaveConfig
			return transport.SaveConfigResultMessage(&e)
		}
		return transport.SaveConfigResultMessage(nil)

	case transport.RequestServerSettings:
		settings := r.snapshotSettings(compressionActive)
		return transport.ServerSettingsMessage(settings)

	case transport.RequestSetCompression:
		r.mu.Lock()
		r.cfg.Listen.CompressionActive = req.CompressionEnabled
		r.mu.Unlock()
		return transport.SetCompressionResultMessage(req.CompressionEnabled, nil)

	case transport.RequestSetInterface:
		available, err := capture.ListInterfaces()
		if err != nil {
			logp.Warn("list interfaces: %v", err)
			e := transport.ErrInvalidInterface
			return transport.SetInterfaceResultMessage(req.InterfaceName, &e)
		}
		if !contains(available, req.InterfaceName) {
			e := transport.ErrInvalidInterface
			return transport.SetInterfaceResultMessage(req.InterfaceName, &e)
		}
		r.mu.Lock()
		r.cfg.Capture.Interface = req.InterfaceName
		r.mu.Unlock()
		return transport.SetInterfaceResultMessage(req.InterfaceName, nil)

	default:
		e := transport.ErrInvalidMessageFormat
		return transport.ErrorMessage(e)
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
