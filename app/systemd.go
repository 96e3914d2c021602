package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"git.tatikoma.dev/corpix/keeper/log"
)

// sdNotify reports state to systemd, it is a no-op outside of a notify unit.
func sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn().Err(err).Str("state", state).Msg("failed to notify systemd")
		return
	}
	if sent {
		log.Debug().Str("state", state).Msg("notified systemd")
	}
}
