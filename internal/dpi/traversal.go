package dpi

import (
	"github.com/google/gopacket/layers"
)

const maxTraversalDepth = 16

type descendResult int

const (
	resComplete descendResult = iota
	resIncomplete
	resFailed
)

// Parse is the traversal engine entry point: given a link type and a raw
// frame, it walks the protocol-identifier tree depth-first with bounded
// recursion and produces exactly one FrameType. It never panics.
func Parse(header FrameHeader, data []byte, linkType layers.LinkType, rawNeeded bool) FrameType {
	rootID, ok := rootIdentifier(linkType)
	if !ok {
		// Preferred behavior (see DESIGN.md, Open Question 3): an unknown
		// link type still preserves the header rather than dropping it.
		return HeaderFrame{Header: header}
	}

	meta := newFrameMetadata(header)
	result := descend(meta, rootID, data, 0)

	switch result {
	case resComplete:
		return MetadataFrame{Metadata: meta}
	case resIncomplete:
		if rawNeeded {
			return RawFrame{Header: header, Data: data}
		}
		return MetadataFrame{Metadata: meta}
	default: // resFailed
		if rawNeeded {
			return RawFrame{Header: header, Data: data}
		}
		return HeaderFrame{Header: header}
	}
}

// descend decodes one identifier's layer from window and, on a non-empty
// residual, recurses into best_child (authoritative: its result, including
// a failure, is bubbled up as-is — an authoritative guess that turns out
// wrong means the frame itself is malformed) or, failing that, the
// children() fallback list in order (a blind guess: a failed candidate
// just means try the next one; if all fail the result is Incomplete, never
// Failed, since the current layer itself decoded fine).
func descend(meta *FrameMetadata, id Identifier, window []byte, depth int) descendResult {
	if depth >= maxTraversalDepth {
		return resFailed
	}

	entry, ok := registry[id]
	if !ok {
		return resFailed
	}

	layer, residual, err := entry.decode(window)
	if err != nil {
		return resFailed
	}

	meta.push(layer)
	if len(residual) == 0 {
		return resComplete
	}

	if next, ok := entry.bestChild(meta); ok {
		return descend(meta, next, residual, depth+1)
	}

	for _, child := range entry.children() {
		before := len(meta.Layers)
		r := descend(meta, child, residual, depth+1)
		if r == resComplete || r == resIncomplete {
			return r
		}
		meta.Layers = meta.Layers[:before]
	}
	return resIncomplete
}
