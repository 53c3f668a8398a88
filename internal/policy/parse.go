/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"
)

// Policy documents are HuJSON (JSON with comments and trailing commas):
//
//	{
//	    "programs": {
//	        // one-or-more sources, then the destination
//	        "cp": [
//	            {"vararg": {"readable_file": true}},
//	            {"writable_file": true},
//	        ],
//	        "git": [
//	            {"subcommand": {"name": "status", "args": []}},
//	        ],
//	    },
//	}
//
// Each matcher object carries exactly one of the keys "literal",
// "subcommand", "readable_file", "writable_file", "flag", or "vararg".

type rawDocument struct {
	Programs map[string][]json.RawMessage `json:"programs"`
}

type rawSubcommand struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args"`
}

// Parse parses and validates a policy document. id identifies the
// source (typically a filename) and is echoed in every ParseError.
func Parse(id string, src []byte) (*Policy, error) {
	std, err := hujson.Standardize(src)
	if err != nil {
		return nil, &ParseError{PolicyID: id, Pos: -1, Msg: err.Error()}
	}

	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()

	var doc rawDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{PolicyID: id, Pos: -1, Msg: err.Error()}
	}
	if doc.Programs == nil {
		return nil, &ParseError{PolicyID: id, Pos: -1,
			Msg: "missing \"programs\" section"}
	}

	p := &Policy{
		id:       id,
		programs: make(map[string][]Matcher, len(doc.Programs)),
	}
	for name, rawList := range doc.Programs {
		if name == "" {
			return nil, &ParseError{PolicyID: id, Pos: -1,
				Msg: "empty program name"}
		}
		matchers, err := parseMatcherList(id, name, rawList)
		if err != nil {
			return nil, err
		}
		p.programs[name] = matchers
	}
	return p, nil
}

func parseMatcherList(id, program string,
	raw []json.RawMessage) ([]Matcher, error) {

	matchers := make([]Matcher, 0, len(raw))
	sawVararg := false
	for i, rm := range raw {
		m, err := parseMatcher(id, program, i, rm)
		if err != nil {
			return nil, err
		}
		if m.Kind == ArgTypeVararg {
			if sawVararg {
				return nil, &ParseError{PolicyID: id, Program: program,
					Pos: i, Msg: "vararg after vararg is unreachable"}
			}
			sawVararg = true
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func parseMatcher(id, program string, pos int,
	raw json.RawMessage) (Matcher, error) {

	perr := func(format string, args ...any) error {
		return &ParseError{PolicyID: id, Program: program, Pos: pos,
			Msg: fmt.Sprintf(format, args...)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Matcher{}, perr("matcher must be an object: %v", err)
	}
	if len(fields) != 1 {
		return Matcher{}, perr("matcher must have exactly one key, got %d",
			len(fields))
	}

	for key, val := range fields {
		switch key {
		case "literal":
			var s string
			if err := json.Unmarshal(val, &s); err != nil || s == "" {
				return Matcher{}, perr("literal requires a non-empty string")
			}
			return Matcher{Kind: ArgTypeLiteral, Value: s}, nil

		case "flag":
			var s string
			if err := json.Unmarshal(val, &s); err != nil || s == "" {
				return Matcher{}, perr("flag requires a non-empty string")
			}
			if s[0] != '-' {
				return Matcher{}, perr("flag %q must begin with '-'", s)
			}
			return Matcher{Kind: ArgTypeFlag, Value: s}, nil

		case "readable_file", "writable_file":
			var b bool
			if err := json.Unmarshal(val, &b); err != nil || !b {
				return Matcher{}, perr("%v must be set to true", key)
			}
			kind := ArgTypeReadableFile
			if key == "writable_file" {
				kind = ArgTypeWritableFile
			}
			return Matcher{Kind: kind}, nil

		case "subcommand":
			var sub rawSubcommand
			dec := json.NewDecoder(bytes.NewReader(val))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&sub); err != nil {
				return Matcher{}, perr("invalid subcommand: %v", err)
			}
			if sub.Name == "" {
				return Matcher{}, perr("subcommand requires a name")
			}
			nested, err := parseMatcherList(id, program, sub.Args)
			if err != nil {
				return Matcher{}, err
			}
			return Matcher{Kind: ArgTypeSubcommand, Value: sub.Name,
				Nested: nested}, nil

		case "vararg":
			inner, err := parseMatcher(id, program, pos, val)
			if err != nil {
				return Matcher{}, err
			}
			switch inner.Kind {
			case ArgTypeSubcommand, ArgTypeVararg:
				return Matcher{}, perr(
					"vararg inner matcher must consume a single token, got %v",
					inner.Kind)
			}
			return Matcher{Kind: ArgTypeVararg, Inner: &inner}, nil

		default:
			return Matcher{}, perr("unknown matcher kind %q", key)
		}
	}
	return Matcher{}, perr("empty matcher")
}
