package common

import (
	"strings"

	errs "marketescrow/core/errors"
)

var ErrModulePaused = errs.New("common", 6016, errs.KindState, "module paused")

// PauseView reports the operator pause switches by module name.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when module is switched off. A nil view
// leaves every module running.
func Guard(p PauseView, module string) error {
	module = strings.TrimSpace(module)
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return errs.Wrapf(ErrModulePaused, "%s", module)
	}
	return nil
}
