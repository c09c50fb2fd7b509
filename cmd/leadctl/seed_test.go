package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `
id: 65a1f0c2e4b0a1b2c3d4e5f6
name: Spring Expo
organization: org-1
uniqueCols: [email, pincode]
fields:
  - readable: Email
    internal: email
  - readable: PIN Code
    internal: pincode
  - readable: Branch
    internal: branch
`)
	c, fields, err := loadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, "Spring Expo", c.Name)
	assert.Equal(t, []string{"email", "pincode"}, c.UniqueCols)
	require.Len(t, fields, 3)
	assert.Equal(t, "PIN Code", fields[1].ReadableField)
	assert.Equal(t, c.ID, fields[2].CampaignID)
}

func TestLoadSeedRejects(t *testing.T) {
	tests := map[string]string{
		"no id":             "name: x\nuniqueCols: [email]\nfields: [{readable: Email, internal: email}]\n",
		"no unique cols":    "id: c1\nname: x\nfields: [{readable: Email, internal: email}]\n",
		"unmapped key":      "id: c1\nname: x\nuniqueCols: [phone]\nfields: [{readable: Email, internal: email}]\n",
		"reserved internal": "id: c1\nname: x\nuniqueCols: [email]\nfields: [{readable: Email, internal: email}, {readable: Org, internal: organization}]\n",
		"not yaml":          "id: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := loadSeed(writeSeed(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadSeedSample(t *testing.T) {
	c, fields, err := loadSeed("testdata/campaign.yaml")
	require.NoError(t, err)
	assert.Equal(t, "acme", c.Organization)
	assert.Len(t, fields, 4)
}
