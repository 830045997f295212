// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tryextra/extra-oidc/pkg/versions"
)

const validConfig = `
listen_address: ":3000"
hosts:
  login: https://login.tryextra.net/
  api: https://api.tryextra.net
interaction:
  cookie_keys:
    - 0123456789abcdef0123456789abcdef
upstream:
  issuer: https://login.microsoftonline.com/tenant/v2.0
  client_id: upstream-client
  client_secret: upstream-secret
directory:
  url: https://directory.tryextra.net
  token: directory-token
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCmd(t *testing.T) { //nolint:paralleltest // Binds flags on the global viper
	out, err := execute(t, "validate", "--config", writeConfig(t, validConfig))
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
}

func TestValidateCmd_PrintRedactsSecrets(t *testing.T) { //nolint:paralleltest // Binds flags on the global viper
	out, err := execute(t, "validate", "--print", "--config", writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Contains(t, out, "login: https://login.tryextra.net")
	assert.NotContains(t, out, "upstream-secret")
	assert.NotContains(t, out, "directory-token")
	assert.NotContains(t, out, "0123456789abcdef0123456789abcdef")
}

func TestValidateCmd_ReportsProblems(t *testing.T) { //nolint:paralleltest // Binds flags on the global viper
	broken := strings.Replace(validConfig, "client_id: upstream-client", "client_id: \"\"", 1)
	_, err := execute(t, "validate", "--config", writeConfig(t, broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.client_id is required")
}

func TestValidateCmd_MissingFile(t *testing.T) { //nolint:paralleltest // Binds flags on the global viper
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestVersionCmd(t *testing.T) { //nolint:paralleltest // Binds flags on the global viper
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info versions.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, versions.GetVersionInfo(), info)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "extra-oidc "))
}
