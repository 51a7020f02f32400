package lookup

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Service is one service descriptor for a port number. A single port can
// carry several transports (e.g. 53/tcp and 53/udp both map to "domain"),
// so PortTable.Lookup returns a slice.
type Service struct {
	Name        string
	Transport   string
	Description string
}

// PortTable maps a port number to its registered services. Built once from
// an IANA-style CSV and never mutated afterward.
type PortTable struct {
	byPort map[uint16][]Service
}

// Lookup returns the services registered for port, in CSV row order.
func (t *PortTable) Lookup(port uint16) []Service {
	return t.byPort[port]
}

// LoadPortTable reads an IANA service-names CSV. Columns 0..3 are
// (service_name, port, transport_protocol, description); any further
// columns are ignored. Rows whose port column doesn't parse as a uint16 are
// skipped rather than failing the whole load, matching §4.6's "skip on
// failure" — the IANA registry itself carries a handful of malformed or
// range-valued port fields.
//
// encoding/csv is stdlib: no CSV-handling library appears anywhere in the
// example pack, so there is nothing in the corpus to ground a third-party
// choice on (see DESIGN.md).
func LoadPortTable(r io.Reader) (*PortTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := &PortTable{byPort: make(map[uint16][]Service)}

	header := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(record) < 4 {
			continue
		}
		port, err := strconv.ParseUint(record[1], 10, 16)
		if err != nil {
			continue
		}
		svc := Service{Name: record[0], Transport: record[2], Description: record[3]}
		p := uint16(port)
		t.byPort[p] = append(t.byPort[p], svc)
	}
	return t, nil
}
