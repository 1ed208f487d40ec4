// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package sidechannel multiplexes structured artifacts onto a line-oriented
// log stream.
//
// An artifact is a single line "<TAG>:<json>". Everything else on the stream
// is an ordinary log line. Decoding is pure and needs no subprocess.
package sidechannel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Tag identifies an artifact kind.
type Tag string

const (
	// TagChart carries a rendered chart payload.
	TagChart Tag = "CHART"
	// TagSchema carries the parameter schema of a schema-mode run.
	TagSchema Tag = "SCHEMA"
)

// Tags is the closed set of recognized tags.
var Tags = []Tag{TagChart, TagSchema}

func (t Tag) prefix() string { return string(t) + ":" }

// Encode writes payload as one artifact line.
func Encode(w io.Writer, tag Tag, payload interface{}) error {
	if !known(tag) {
		return fmt.Errorf("unknown side-channel tag %q", tag)
	}
	// Compact JSON never contains a raw newline.
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s artifact: %w", tag, err)
	}
	line := make([]byte, 0, len(tag)+len(data)+2)
	line = append(line, tag.prefix()...)
	line = append(line, data...)
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}

func known(tag Tag) bool {
	for _, t := range Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Decoded is the result of splitting a stream into logs and artifacts.
type Decoded struct {
	// Logs are the ordinary lines in stream order.
	Logs []string
	// Artifacts holds the last well-formed payload per tag.
	Artifacts map[Tag]json.RawMessage
	// Dropped lists the tags of artifact lines whose payload failed to parse.
	Dropped []Tag
}

// Artifact returns the payload for tag, if any survived.
func (d Decoded) Artifact(tag Tag) (json.RawMessage, bool) {
	raw, ok := d.Artifacts[tag]
	return raw, ok
}

// Decode splits r into log lines and artifacts. Artifact lines never appear in
// Logs, even when their payload is malformed. A trailing carriage return is
// stripped from every line. The only error is a read error from r.
func Decode(r io.Reader) (Decoded, error) {
	out := Decoded{
		Logs:      []string{},
		Artifacts: make(map[Tag]json.RawMessage),
	}

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			out.add(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(b []byte) Decoded {
	// bytes.Reader never fails.
	d, _ := Decode(bytes.NewReader(b))
	return d
}

func (d *Decoded) add(line string) {
	for _, tag := range Tags {
		payload, ok := strings.CutPrefix(line, tag.prefix())
		if !ok {
			continue
		}
		if !json.Valid([]byte(payload)) {
			d.Dropped = append(d.Dropped, tag)
			return
		}
		d.Artifacts[tag] = json.RawMessage(payload)
		return
	}
	d.Logs = append(d.Logs, line)
}
