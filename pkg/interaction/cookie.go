// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName names the cookie that references the paused interaction.
const DefaultCookieName = "_interaction"

// signatureSeparator joins the cookie value and its signature.
const signatureSeparator = "."

// CookieCodec issues and verifies the interaction cookie. The value is signed
// with the first key; any key verifies, so keys can be rotated by prepending.
type CookieCodec struct {
	name   string
	keys   [][]byte
	secure bool
}

// NewCookieCodec creates a CookieCodec. At least one key is required.
func NewCookieCodec(name string, keys []string, secure bool) (*CookieCodec, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one cookie signing key is required")
	}
	if name == "" {
		name = DefaultCookieName
	}
	c := &CookieCodec{name: name, secure: secure}
	for _, k := range keys {
		c.keys = append(c.keys, []byte(k))
	}
	return c, nil
}

// Name returns the cookie name.
func (c *CookieCodec) Name() string {
	return c.name
}

func sign(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// Set writes the cookie referencing uuid, expiring with the interaction.
func (c *CookieCodec) Set(w http.ResponseWriter, uuid string, expiresAt time.Time) {
	http.SetCookie(w, c.cookie(uuid+signatureSeparator+sign(c.keys[0], uuid), expiresAt))
}

// Clear removes the cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	ck := c.cookie("", time.Unix(0, 0))
	ck.MaxAge = -1
	http.SetCookie(w, ck)
}

func (c *CookieCodec) cookie(value string, expires time.Time) *http.Cookie {
	// The identity provider posts its callback cross-site, which only carries
	// SameSite=None cookies. Browsers accept those on secure cookies only.
	sameSite := http.SameSiteLaxMode
	if c.secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: sameSite,
	}
}

// Read returns the uuid carried by a validly signed cookie on r.
func (c *CookieCodec) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.name)
	if err != nil || ck.Value == "" {
		return "", false
	}

	uuid, signature, ok := strings.Cut(ck.Value, signatureSeparator)
	if !ok || uuid == "" {
		return "", false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return "", false
	}

	for _, key := range c.keys {
		want, _ := hex.DecodeString(sign(key, uuid))
		if hmac.Equal(got, want) {
			return uuid, true
		}
	}
	return "", false
}
