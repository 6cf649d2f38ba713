package model

import "errors"

// =====================================================
// ERROR DEFINITIONS
// =====================================================
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)
