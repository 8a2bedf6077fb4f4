// Package objects implements the change-tracked record layer (C2) on top of
// internal/store: typed Node/Nic/Network/OSImage/Passwd/Service records with
// create_many/save_many/reserve_many/release_many/list_in semantics.
package objects

import "errors"

var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrNetworkNotFound  = errors.New("network not found")
	ErrOSImageNotFound  = errors.New("osimage not found")
	ErrNicNotFound      = errors.New("nic not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrPasswdNotFound   = errors.New("passwd not found")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrMACAlreadyExists = errors.New("mac already exists")
	ErrNicAlreadyExists = errors.New("nic already exists")
	ErrNetworkExists    = errors.New("network already exists")
	ErrOSImageExists    = errors.New("osimage already exists")
	ErrNodeLocked       = errors.New("node locked")
	ErrInvalidState     = errors.New("invalid state")
	ErrReferenced       = errors.New("referent still in use")
)
