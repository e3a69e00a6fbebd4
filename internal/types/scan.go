// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ScanResults is the combined output of the scanning collaborators. Each
// section is kept as raw JSON and decoded record by record, so one broken
// record never prevents the others from being read.
type ScanResults struct {
	PortScan PortScan
	VulnScan VulnScan

	waf       json.RawMessage
	wafBypass json.RawMessage
}

// UnmarshalJSON splits the document into its sections. Only a document that
// is not a JSON object fails here; section contents are validated lazily.
func (s *ScanResults) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	s.PortScan = PortScan{raw: all["port_scan"]}
	s.VulnScan = VulnScan{raw: all["vuln_scan"]}
	s.waf = all["waf"]
	s.wafBypass = all["waf_bypass"]
	return nil
}

// WAFDetection is the WAF fingerprinting result.
type WAFDetection struct {
	Detected bool     `json:"detected"`
	WAFTypes []string `json:"waf_types,omitempty"`
}

// WAFDetection decodes the WAF result. It is read from "waf", or from
// "waf_bypass.waf_info" / "waf_bypass.waf_detection" where the WAF prober
// writes it. A missing section returns nil without error.
func (s *ScanResults) WAFDetection() (*WAFDetection, error) {
	raw := s.waf
	path := "waf"
	if absent(raw) && !absent(s.wafBypass) {
		members, err := objectMembers(s.wafBypass)
		if err != nil {
			return nil, NewRecordError(StageWAF, "waf_bypass", err)
		}
		for _, m := range members {
			if m.Key == "waf_info" || m.Key == "waf_detection" {
				raw = m.Value
				path = "waf_bypass/" + m.Key
				break
			}
		}
	}
	if absent(raw) {
		return nil, nil
	}

	var probe struct {
		Detected *bool    `json:"detected"`
		WAFTypes []string `json:"waf_types"`
	}
	if kind := jsonKind(raw); kind != "object" {
		return nil, NewRecordError(StageWAF, path, fmt.Errorf("expected object, got %s", kind))
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, NewRecordError(StageWAF, path, err)
	}
	if probe.Detected == nil {
		return nil, NewRecordError(StageWAF, path, errMissingField("detected"))
	}
	return &WAFDetection{Detected: *probe.Detected, WAFTypes: probe.WAFTypes}, nil
}

// ServiceRecord is one port entry reported by the port scanner.
type ServiceRecord struct {
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Product string `json:"product,omitempty"`
	State   string `json:"state,omitempty"`
}

// PortRecord is a flattened (host, protocol, port, service) tuple.
type PortRecord struct {
	Host     string
	Protocol string
	Port     int
	Service  ServiceRecord
}

// PortScan holds the raw port-scan section:
// {host: {"protocols": {proto: {port: record}}}} or {host: {proto: {port: record}}}.
type PortScan struct {
	raw json.RawMessage
}

// NewPortScan wraps a raw port-scan section.
func NewPortScan(raw json.RawMessage) PortScan {
	return PortScan{raw: raw}
}

// hostMetadataKeys are host-level fields that are not protocol maps.
var hostMetadataKeys = map[string]bool{
	"state":     true,
	"hostname":  true,
	"hostnames": true,
}

// Records flattens the section in document order. Records that cannot be
// decoded are returned as *RecordError and skipped.
func (p PortScan) Records() ([]PortRecord, []error) {
	if absent(p.raw) {
		return nil, nil
	}
	hosts, err := objectMembers(p.raw)
	if err != nil {
		return nil, []error{NewRecordError(StagePortScan, "", err)}
	}

	var records []PortRecord
	var errs []error
	for _, host := range hosts {
		protocols, err := hostProtocols(host.Value)
		if err != nil {
			errs = append(errs, NewRecordError(StagePortScan, host.Key, err))
			continue
		}
		for _, proto := range protocols {
			protoPath := host.Key + "/" + proto.Key
			ports, err := objectMembers(proto.Value)
			if err != nil {
				errs = append(errs, NewRecordError(StagePortScan, protoPath, err))
				continue
			}
			for _, port := range ports {
				path := protoPath + "/" + port.Key
				num, err := strconv.Atoi(port.Key)
				if err != nil || num < 0 || num > 65535 {
					errs = append(errs, NewRecordError(StagePortScan, path, fmt.Errorf("invalid port %q", port.Key)))
					continue
				}
				svc, err := decodeServiceRecord(port.Value)
				if err != nil {
					errs = append(errs, NewRecordError(StagePortScan, path, err))
					continue
				}
				records = append(records, PortRecord{
					Host:     host.Key,
					Protocol: proto.Key,
					Port:     num,
					Service:  svc,
				})
			}
		}
	}
	return records, errs
}

// hostProtocols returns the protocol members of a host entry, unwrapping
// the optional "protocols" key.
func hostProtocols(raw json.RawMessage) ([]member, error) {
	members, err := objectMembers(raw)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.Key == "protocols" {
			return objectMembers(m.Value)
		}
	}
	protocols := make([]member, 0, len(members))
	for _, m := range members {
		if hostMetadataKeys[m.Key] {
			continue
		}
		protocols = append(protocols, m)
	}
	return protocols, nil
}

func decodeServiceRecord(raw json.RawMessage) (ServiceRecord, error) {
	var svc ServiceRecord
	if kind := jsonKind(raw); kind != "object" {
		return svc, fmt.Errorf("expected object, got %s", kind)
	}
	if err := json.Unmarshal(raw, &svc); err != nil {
		return svc, err
	}
	return svc, nil
}

// FindingRecord is one vulnerability finding with the service label it was
// grouped under and, when known, the tool that produced it.
type FindingRecord struct {
	Service string
	Tool    string
	Finding VulnFinding
}

// VulnScan holds the raw vulnerability section, grouped by service label.
// A label maps to a single finding, to {tool: finding}, or to a list of
// findings.
type VulnScan struct {
	raw json.RawMessage
}

// NewVulnScan wraps a raw vulnerability section.
func NewVulnScan(raw json.RawMessage) VulnScan {
	return VulnScan{raw: raw}
}

// Records flattens the section in document order. Findings that cannot be
// decoded are returned as *RecordError and skipped.
func (v VulnScan) Records() ([]FindingRecord, []error) {
	if absent(v.raw) {
		return nil, nil
	}
	services, err := objectMembers(v.raw)
	if err != nil {
		return nil, []error{NewRecordError(StageVulnScan, "", err)}
	}

	var records []FindingRecord
	var errs []error
	add := func(service, tool, path string, raw json.RawMessage) {
		var f VulnFinding
		if err := json.Unmarshal(raw, &f); err != nil {
			errs = append(errs, NewRecordError(StageVulnScan, path, err))
			return
		}
		records = append(records, FindingRecord{Service: service, Tool: tool, Finding: f})
	}

	for _, svc := range services {
		switch jsonKind(svc.Value) {
		case "array":
			var items []json.RawMessage
			if err := json.Unmarshal(svc.Value, &items); err != nil {
				errs = append(errs, NewRecordError(StageVulnScan, svc.Key, err))
				continue
			}
			for i, item := range items {
				add(svc.Key, "", fmt.Sprintf("%s/%d", svc.Key, i), item)
			}
		case "object":
			tools, err := objectMembers(svc.Value)
			if err != nil {
				errs = append(errs, NewRecordError(StageVulnScan, svc.Key, err))
				continue
			}
			if hasMember(tools, "vulnerable") {
				add(svc.Key, "", svc.Key, svc.Value)
				continue
			}
			for _, tool := range tools {
				add(svc.Key, tool.Key, svc.Key+"/"+tool.Key, tool.Value)
			}
		default:
			errs = append(errs, NewRecordError(StageVulnScan, svc.Key,
				fmt.Errorf("expected object or array, got %s", jsonKind(svc.Value))))
		}
	}
	return records, errs
}

// member is one key/value pair of a JSON object, in document order.
type member struct {
	Key   string
	Value json.RawMessage
}

// objectMembers decodes a JSON object preserving member order, which a
// map would lose.
func objectMembers(raw json.RawMessage) ([]member, error) {
	if kind := jsonKind(raw); kind != "object" {
		return nil, fmt.Errorf("expected object, got %s", kind)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		out = append(out, member{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func hasMember(members []member, key string) bool {
	for _, m := range members {
		if m.Key == key {
			return true
		}
	}
	return false
}

// jsonKind names the JSON type of raw from its first significant byte.
func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "nothing"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// absent reports whether a section is missing or null.
func absent(raw json.RawMessage) bool {
	kind := jsonKind(raw)
	return kind == "nothing" || kind == "null"
}

func errMissingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}
