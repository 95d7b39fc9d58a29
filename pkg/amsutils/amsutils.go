package amsutils

import (
	"github.com/function61/gokit/cryptorandombytes"
)

// there's gonna be lots of these
var NewAssetID = longID
var NewMediaID = longID

// comparatively few of these
var NewSetID = shortID
var NewRequestID = longID

func shortID() string {
	return cryptorandombytes.Base64UrlWithoutLeadingDash(3)
}

func longID() string {
	return cryptorandombytes.Base64UrlWithoutLeadingDash(8)
}
