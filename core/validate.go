package core

import (
	"github.com/trustnet/go-trustnet/params"
)

// Field-ceiling checks shared by the four registries. Each returns the
// matching input-validation error so callers can surface a distinguishable
// reason.

func checkURI(uri string) error {
	if len(uri) > params.MaxURILength {
		return ErrOversizedURI
	}
	return nil
}

func checkText(text string) error {
	if len(text) > params.MaxTextLength {
		return ErrOversizedText
	}
	return nil
}

func checkTag(tag string) error {
	if len(tag) > params.MaxTagLength {
		return ErrOversizedTag
	}
	return nil
}

func checkMetadataKey(key string) error {
	if len(key) == 0 {
		return ErrEmptyMetadataKey
	}
	if len(key) > params.MaxMetadataKeyLength {
		return ErrOversizedMetadataKey
	}
	return nil
}

func checkMetadataValue(value []byte) error {
	if len(value) > params.MaxMetadataValueLength {
		return ErrOversizedMetadata
	}
	return nil
}
