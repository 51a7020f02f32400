// Package lookup provides the two read-only, build-once annotation tables
// used to enrich decoded frames: vendor lookup from a MAC's OUI prefix, and
// service lookup from a well-known port number.
package lookup

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/negbie/freecache"

	"github.com/sipcapture/xailyser/internal/dpi"
)

// Vendor is the record stored at an OUI radix-tree node.
type Vendor struct {
	Short string
	Full  string
}

// ouiMasks is the fixed set of prefix lengths the OUI database recognizes,
// tried longest first so the most specific registration wins.
var ouiMasks = [...]int{36, 28, 24}

type ouiNode struct {
	vendor   *Vendor
	children [2]*ouiNode
}

// OuiTable is a radix tree over 48-bit MAC bit-strings, keyed MSB-first, with
// vendor records stored at the nodes representing registered OUI prefixes.
// Built once at startup and never mutated afterward, so concurrent Lookup
// calls need no locking — mirroring heplify's treatment of its decode-time
// lookup tables as immutable once built.
type OuiTable struct {
	root  *ouiNode
	cache *freecache.Cache
}

// NewOuiTable builds an empty table. A front cache of resolved lookups is
// kept so repeated annotation of the same vendor (common across a capture,
// since a handful of MACs dominate most traffic) skips the trie walk; this
// repurposes the dedup-cache pattern titlid-heplify uses for discarding
// duplicate packets, here memoizing lookups instead.
func NewOuiTable() *OuiTable {
	return &OuiTable{
		root:  &ouiNode{},
		cache: freecache.NewCache(4 * 1024 * 1024),
	}
}

// insert registers vendor at the first bitLen bits of key (a 48-character
// "0"/"1" string), creating intermediate nodes as needed.
func (t *OuiTable) insert(key string, bitLen int, vendor Vendor) {
	n := t.root
	for i := 0; i < bitLen; i++ {
		bit := 0
		if key[i] == '1' {
			bit = 1
		}
		if n.children[bit] == nil {
			n.children[bit] = &ouiNode{}
		}
		n = n.children[bit]
	}
	v := vendor
	n.vendor = &v
}

// Lookup finds the longest-registered-prefix vendor for mac, trying 36, then
// 28, then 24 bits; the first match wins regardless of whether a shorter
// prefix is also registered.
func (t *OuiTable) Lookup(mac dpi.MacAddress) (Vendor, bool) {
	bits := mac.Bits()

	if v, err := t.cache.Get([]byte(bits)); err == nil {
		return decodeCachedVendor(v)
	}

	for _, mask := range ouiMasks {
		if v, ok := t.lookupMask(bits, mask); ok {
			_ = t.cache.Set([]byte(bits), encodeCachedVendor(v), 600)
			return v, true
		}
	}
	_ = t.cache.Set([]byte(bits), nil, 600)
	return Vendor{}, false
}

func (t *OuiTable) lookupMask(bits string, mask int) (Vendor, bool) {
	n := t.root
	for i := 0; i < mask; i++ {
		bit := 0
		if bits[i] == '1' {
			bit = 1
		}
		n = n.children[bit]
		if n == nil {
			return Vendor{}, false
		}
	}
	if n.vendor == nil {
		return Vendor{}, false
	}
	return *n.vendor, true
}

// encodeCachedVendor/decodeCachedVendor use a single separator byte rather
// than a general-purpose codec: the cached value is always exactly
// "short\x00full", never round-tripped outside this file.
func encodeCachedVendor(v Vendor) []byte {
	return []byte(v.Short + "\x00" + v.Full)
}

func decodeCachedVendor(b []byte) (Vendor, bool) {
	if b == nil {
		return Vendor{}, false
	}
	parts := strings.SplitN(string(b), "\x00", 2)
	if len(parts) != 2 {
		return Vendor{}, false
	}
	return Vendor{Short: parts[0], Full: parts[1]}, true
}

// LoadOuiTable reads the OUI text database (§4.5 grammar): blank lines and
// lines starting with '#' are skipped; remaining lines are tab-separated
// "prefix/mask\tshort\tfull", mask defaulting to 24 when omitted.
func LoadOuiTable(r io.Reader) (*OuiTable, error) {
	t := NewOuiTable()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("oui database line %d: expected 3 tab-separated fields, got %d", lineNo, len(fields))
		}
		key, mask, err := parseOuiPrefix(fields[0])
		if err != nil {
			return nil, fmt.Errorf("oui database line %d: %w", lineNo, err)
		}
		t.insert(key, mask, Vendor{Short: fields[1], Full: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// parseOuiPrefix parses "AA:BB:CC/28"-style prefix specs (mask optional,
// defaulting to 24) into a 48-bit MSB-first "0"/"1" key and its valid length.
func parseOuiPrefix(spec string) (string, int, error) {
	mask := 24
	prefixPart := spec
	if idx := strings.IndexByte(spec, '/'); idx >= 0 {
		prefixPart = spec[:idx]
		m, err := strconv.Atoi(spec[idx+1:])
		if err != nil {
			return "", 0, fmt.Errorf("invalid mask %q", spec[idx+1:])
		}
		mask = m
	}

	octets := strings.FieldsFunc(prefixPart, func(r rune) bool {
		return r == ':' || r == '-' || r == '.'
	})
	var full dpi.MacAddress
	for i, o := range octets {
		if i >= len(full) {
			break
		}
		v, err := strconv.ParseUint(o, 16, 8)
		if err != nil {
			return "", 0, fmt.Errorf("invalid octet %q", o)
		}
		full[i] = byte(v)
	}

	bits := full.Bits()
	if mask < 0 || mask > len(bits) {
		return "", 0, fmt.Errorf("mask %d out of range", mask)
	}
	return bits, mask, nil
}
