package host

import (
	"context"
	"errors"

	"github.com/lotas/tabtree/internal/firefox"
	"github.com/lotas/tabtree/internal/types"
)

// ErrReadOnly is returned by Offline for operations that need a live
// browser.
var ErrReadOnly = errors.New("offline tree is read-only")

// Offline implements Tree from a Firefox profile's session file.
type Offline struct {
	ProfileDir string
}

func (o Offline) GetTree(context.Context) ([]*types.RawTab, error) {
	return firefox.ReadSessionFile(o.ProfileDir)
}

func (Offline) Collapse(context.Context, int) error { return ErrReadOnly }
func (Offline) Expand(context.Context, int) error   { return ErrReadOnly }
func (Offline) Focus(context.Context, int) error    { return ErrReadOnly }
