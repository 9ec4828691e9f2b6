package info

import "github.com/roach88/absim/internal/ir"

// None carries nothing. Use it when only the reachable states matter.
type None struct{}

func (None) Compose(None) None      { return None{} }
func (None) Equal(None) bool        { return true }
func (None) Canonical() ir.IRObject { return ir.IRObject{} }

// NoneHandler produces None.
type NoneHandler struct{}

func (NoneHandler) Empty() None                                   { return None{} }
func (NoneHandler) OnStartOfCode(cur None, _ string) None         { return cur }
func (NoneHandler) OnUnblocked(cur None, _ string, _ Reason) None { return cur }
func (NoneHandler) OnAccess(cur None, _, _ string, _ bool) None   { return cur }
