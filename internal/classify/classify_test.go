// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonial-oss/threatmodel/internal/types"
)

func record(host string, port int, service string) types.PortRecord {
	return types.PortRecord{
		Host:     host,
		Protocol: "tcp",
		Port:     port,
		Service:  types.ServiceRecord{Service: service},
	}
}

func TestClassify_WebServer(t *testing.T) {
	r := record("10.0.0.5", 443, "https")
	r.Service.Product = "nginx"
	r.Service.Version = "1.25.3"

	res := New(nil, Options{}).Classify([]types.PortRecord{r})

	require.Len(t, res.Assets, 1)
	a := res.Assets[0]
	assert.Equal(t, "Web Server (10.0.0.5:443)", a.Name)
	assert.Equal(t, types.AssetWebServer, a.Type)
	assert.Equal(t, 8, a.Value)
	assert.True(t, a.Exposed)
	assert.Equal(t, []string{"https"}, a.Services)
	assert.Equal(t, "Web Server running nginx 1.25.3 (tcp/443)", a.Description)
}

func TestClassify_DomainControllerByPortWithoutService(t *testing.T) {
	res := New(nil, Options{}).Classify([]types.PortRecord{record("dc1", 389, "")})

	require.Len(t, res.Assets, 1)
	a := res.Assets[0]
	assert.Equal(t, "Domain Controller (dc1)", a.Name)
	assert.Equal(t, types.AssetDomainController, a.Type)
	assert.Equal(t, 10, a.Value)
	assert.True(t, a.Exposed)
	assert.NotNil(t, a.Services)
	assert.Empty(t, a.Services)
	assert.Equal(t, "Domain Controller (tcp/389)", a.Description)
}

func TestClassify_RuleTable(t *testing.T) {
	tests := []struct {
		name     string
		rec      types.PortRecord
		wantType types.AssetType
		wantVal  int
		wantName string
	}{
		{"http", record("h", 80, "http"), types.AssetWebServer, 8, "Web Server (h:80)"},
		{"upper-case https", record("h", 8443, "HTTPS"), types.AssetWebServer, 8, "Web Server (h:8443)"},
		{"mysql", record("h", 3306, "mysql"), types.AssetDatabase, 9, "Database Server (h:3306)"},
		{"mssql", record("h", 1433, "mssql"), types.AssetDatabase, 9, "Database Server (h:1433)"},
		{"postgresql", record("h", 5432, "postgresql"), types.AssetDatabase, 9, "Database Server (h:5432)"},
		{"mongodb", record("h", 27017, "mongodb"), types.AssetDatabase, 9, "Database Server (h:27017)"},
		{"kerberos", record("h", 88, "kerberos"), types.AssetDomainController, 10, "Domain Controller (h)"},
		{"ldap on odd port", record("h", 3268, "ldap"), types.AssetDomainController, 10, "Domain Controller (h)"},
		// First match wins: a web service on 389 is a web server.
		{"http on 389", record("h", 389, "http"), types.AssetWebServer, 8, "Web Server (h:389)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(nil, Options{}).Classify([]types.PortRecord{tt.rec})
			require.Len(t, res.Assets, 1)
			assert.Equal(t, tt.wantType, res.Assets[0].Type)
			assert.Equal(t, tt.wantVal, res.Assets[0].Value)
			assert.Equal(t, tt.wantName, res.Assets[0].Name)
		})
	}
}

func TestClassify_UnmatchedRecordsAreSkipped(t *testing.T) {
	res := New(nil, Options{}).Classify([]types.PortRecord{
		record("h", 22, "ssh"),
		record("h", 443, "https"),
		record("h", 445, "microsoft-ds"),
	})
	require.Len(t, res.Assets, 1)
	assert.Equal(t, 2, res.Unmatched)
	assert.Empty(t, res.Duplicates)
}

func TestClassify_EmptyInput(t *testing.T) {
	res := New(nil, Options{}).Classify(nil)
	assert.NotNil(t, res.Assets)
	assert.Empty(t, res.Assets)
	assert.Zero(t, res.Unmatched)
}

func TestClassify_DiscoveryOrder(t *testing.T) {
	res := New(nil, Options{}).Classify([]types.PortRecord{
		record("b", 5432, "postgresql"),
		record("a", 80, "http"),
		record("c", 389, "ldap"),
	})
	require.Len(t, res.Assets, 3)
	assert.Equal(t, "Database Server (b:5432)", res.Assets[0].Name)
	assert.Equal(t, "Web Server (a:80)", res.Assets[1].Name)
	assert.Equal(t, "Domain Controller (c)", res.Assets[2].Name)
}

func TestClassify_DuplicatesKeptByDefault(t *testing.T) {
	records := []types.PortRecord{
		record("dc1", 389, "ldap"),
		record("dc1", 88, "kerberos"),
	}

	res := New(nil, Options{}).Classify(records)

	require.Len(t, res.Assets, 2)
	assert.Equal(t, res.Assets[0].Name, res.Assets[1].Name)
	require.Len(t, res.Duplicates, 1)
	assert.True(t, errors.Is(res.Duplicates[0], types.ErrDuplicateAsset))
	var dup *types.DuplicateAssetError
	require.ErrorAs(t, res.Duplicates[0], &dup)
	assert.False(t, dup.Merged)
	assert.Equal(t, "Domain Controller (dc1)", dup.Name)
}

func TestClassify_DedupeCollapsesRepeatedNames(t *testing.T) {
	records := []types.PortRecord{
		record("h", 443, "https"),
		record("h", 443, "https"),
		record("h", 80, "http"),
	}

	res := New(nil, Options{Dedupe: true}).Classify(records)

	require.Len(t, res.Assets, 2)
	assert.Equal(t, "Web Server (h:443)", res.Assets[0].Name)
	assert.Equal(t, "Web Server (h:80)", res.Assets[1].Name)
	require.Len(t, res.Duplicates, 1)
	var dup *types.DuplicateAssetError
	require.ErrorAs(t, res.Duplicates[0], &dup)
	assert.True(t, dup.Merged)
	assert.Equal(t, []string{"https"}, res.Assets[0].Services)
}

func TestClassify_DedupeMergesServices(t *testing.T) {
	records := []types.PortRecord{
		record("dc1", 389, "ldap"),
		record("dc1", 88, "kerberos"),
		record("dc1", 636, "ldap"),
	}

	res := New(nil, Options{Dedupe: true}).Classify(records)

	require.Len(t, res.Assets, 1)
	assert.Equal(t, "Domain Controller (dc1)", res.Assets[0].Name)
	assert.Equal(t, []string{"ldap", "kerberos"}, res.Assets[0].Services)
	assert.Len(t, res.Duplicates, 2)
}

func TestClassify_OpenOnly(t *testing.T) {
	open := record("h", 443, "https")
	open.Service.State = "open"
	closed := record("h", 80, "http")
	closed.Service.State = "closed"
	filtered := record("h", 3306, "mysql")
	filtered.Service.State = "filtered"
	unknown := record("h", 5432, "postgresql")

	records := []types.PortRecord{open, closed, filtered, unknown}

	all := New(nil, Options{}).Classify(records)
	assert.Len(t, all.Assets, 4)

	res := New(nil, Options{OpenOnly: true}).Classify(records)
	require.Len(t, res.Assets, 2)
	assert.Equal(t, "Web Server (h:443)", res.Assets[0].Name)
	assert.Equal(t, "Database Server (h:5432)", res.Assets[1].Name)
}

func TestClassify_CustomRules(t *testing.T) {
	rules := []Rule{{
		Kind:  "Mail Server",
		Type:  types.AssetMailServer,
		Value: 6,
		Match: AnyOf(PortIs(25), ServiceIn("smtp", "imap")),
	}}

	res := New(rules, Options{}).Classify([]types.PortRecord{
		record("mx", 25, ""),
		record("mx", 443, "https"),
	})

	require.Len(t, res.Assets, 1)
	assert.Equal(t, types.AssetMailServer, res.Assets[0].Type)
	assert.False(t, res.Assets[0].Exposed)
	assert.Equal(t, 1, res.Unmatched)
}
