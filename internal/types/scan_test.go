// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseScan(t *testing.T, doc string) *ScanResults {
	t.Helper()
	var s ScanResults
	require.NoError(t, json.Unmarshal([]byte(doc), &s))
	return &s
}

func TestPortScan_Records_ProtocolsWrapper(t *testing.T) {
	s := parseScan(t, `{
		"port_scan": {
			"10.0.0.5": {
				"state": "up",
				"protocols": {
					"tcp": {
						"443": {"state": "open", "service": "https", "product": "nginx", "version": "1.25"},
						"22":  {"state": "open", "service": "ssh"}
					}
				}
			}
		}
	}`)

	records, errs := s.PortScan.Records()
	assert.Empty(t, errs)
	require.Len(t, records, 2)

	// Document order is preserved, not numeric order.
	assert.Equal(t, 443, records[0].Port)
	assert.Equal(t, "10.0.0.5", records[0].Host)
	assert.Equal(t, "tcp", records[0].Protocol)
	assert.Equal(t, "https", records[0].Service.Service)
	assert.Equal(t, "nginx", records[0].Service.Product)
	assert.Equal(t, "1.25", records[0].Service.Version)
	assert.Equal(t, "open", records[0].Service.State)
	assert.Equal(t, 22, records[1].Port)
}

func TestPortScan_Records_BareShape(t *testing.T) {
	s := parseScan(t, `{"port_scan": {"dc1": {"state": "up", "tcp": {"389": {}}}}}`)

	records, errs := s.PortScan.Records()
	assert.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "dc1", records[0].Host)
	assert.Equal(t, 389, records[0].Port)
	assert.Empty(t, records[0].Service.Service)
}

func TestPortScan_Records_MalformedRecordsAreIsolated(t *testing.T) {
	s := parseScan(t, `{
		"port_scan": {
			"a": {"tcp": {
				"80": {"service": "http"},
				"http": {"service": "http"},
				"81": {"service": 42},
				"82": "open",
				"83": {"service": "https"}
			}},
			"b": "not-a-host",
			"c": {"udp": []}
		}
	}`)

	records, errs := s.PortScan.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 80, records[0].Port)
	assert.Equal(t, 83, records[1].Port)

	require.Len(t, errs, 5)
	paths := make([]string, 0, len(errs))
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrMalformedInput)
		var recErr *RecordError
		require.True(t, errors.As(err, &recErr))
		assert.Equal(t, StagePortScan, recErr.Stage)
		paths = append(paths, recErr.Path)
	}
	assert.Equal(t, []string{"a/tcp/http", "a/tcp/81", "a/tcp/82", "b", "c/udp"}, paths)
}

func TestPortScan_Records_Absent(t *testing.T) {
	for _, doc := range []string{`{}`, `{"port_scan": null}`, `{"port_scan": {}}`} {
		s := parseScan(t, doc)
		records, errs := s.PortScan.Records()
		assert.Empty(t, records, doc)
		assert.Empty(t, errs, doc)
	}
}

func TestPortScan_Records_SectionNotObject(t *testing.T) {
	s := parseScan(t, `{"port_scan": [1, 2]}`)
	records, errs := s.PortScan.Records()
	assert.Empty(t, records)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMalformedInput)
}

func TestVulnScan_Records_Shapes(t *testing.T) {
	s := parseScan(t, `{
		"vuln_scan": {
			"https": {
				"nikto": {"vulnerable": true, "severity": "high", "type": "xss"},
				"sqlmap_/login": {"vulnerable": false, "details": "nothing found"}
			},
			"mysql": {"vulnerable": true, "type": "sqli"},
			"smb": [
				{"vulnerable": true, "details": "MS17-010"},
				{"vulnerable": false}
			]
		}
	}`)

	records, errs := s.VulnScan.Records()
	assert.Empty(t, errs)
	require.Len(t, records, 5)

	assert.Equal(t, "https", records[0].Service)
	assert.Equal(t, "nikto", records[0].Tool)
	assert.True(t, records[0].Finding.Vulnerable)
	assert.Equal(t, "xss", records[0].Finding.Type)

	assert.Equal(t, "sqlmap_/login", records[1].Tool)
	assert.False(t, records[1].Finding.Vulnerable)

	assert.Equal(t, "mysql", records[2].Service)
	assert.Empty(t, records[2].Tool)
	assert.Equal(t, "sqli", records[2].Finding.Type)

	assert.Equal(t, "smb", records[3].Service)
	assert.Equal(t, "MS17-010", records[3].Finding.Details)
	assert.False(t, records[4].Finding.Vulnerable)
}

func TestVulnScan_Records_MalformedFindingsAreIsolated(t *testing.T) {
	s := parseScan(t, `{
		"vuln_scan": {
			"https": {
				"nikto": {},
				"sqlmap": {"vulnerable": "yes"},
				"wpscan": {"vulnerable": true, "severity": 3},
				"zap": {"vulnerable": true}
			},
			"smb": "VULNERABLE"
		}
	}`)

	records, errs := s.VulnScan.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "zap", records[0].Tool)

	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrMalformedInput)
	}
	assert.Contains(t, errs[0].Error(), `missing required field "vulnerable"`)
	assert.Contains(t, errs[2].Error(), `field "severity"`)
}

func TestScanResults_WAFDetection(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    *WAFDetection
		wantErr bool
	}{
		{
			name: "top-level waf",
			doc:  `{"waf": {"detected": true, "waf_types": ["cloudflare"]}}`,
			want: &WAFDetection{Detected: true, WAFTypes: []string{"cloudflare"}},
		},
		{
			name: "waf_bypass waf_info",
			doc:  `{"waf_bypass": {"waf_info": {"detected": false}}}`,
			want: &WAFDetection{Detected: false},
		},
		{
			name: "waf_bypass waf_detection",
			doc:  `{"waf_bypass": {"bypass_tests": {}, "waf_detection": {"detected": true, "waf_types": ["generic_waf"]}}}`,
			want: &WAFDetection{Detected: true, WAFTypes: []string{"generic_waf"}},
		},
		{
			name: "absent",
			doc:  `{}`,
			want: nil,
		},
		{
			name:    "missing detected",
			doc:     `{"waf": {"waf_types": []}}`,
			wantErr: true,
		},
		{
			name:    "not an object",
			doc:     `{"waf": true}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parseScan(t, tt.doc)
			got, err := s.WAFDetection()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedInput)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanResults_UnmarshalJSON_NotObject(t *testing.T) {
	var s ScanResults
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &s))
}
