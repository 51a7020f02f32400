package dpi

import (
	"net"

	"github.com/valyala/bytebufferpool"
)

const dnsHeaderLen = 12
const dnsMaxPointerDepth = 7

// DnsHeader is the 12-byte DNS header.
type DnsHeader struct {
	ID      uint16
	QR      bool
	Opcode  uint8
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       uint8
	RCODE   uint8
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// DnsQuestion is one entry of the question section.
type DnsQuestion struct {
	Name   string
	QType  uint16
	QClass uint16
}

// DnsTypeData is the closed set of parsed RDATA shapes; unsupported types
// decode to DnsUnknown.
type DnsTypeData interface{ dnsTypeData() }

type DnsA struct{ Address net.IP }
type DnsAAAA struct{ Address net.IP }
type DnsCNAME struct{ Name string }
type DnsNS struct{ Name string }
type DnsSOA struct {
	PrimaryNS string
	Mailbox   string
	Serial    uint32
	Refresh   uint32
	Retry     uint32
	Expire    uint32
	Minimum   uint32
}
type DnsUnknown struct{ Raw []byte }

func (DnsA) dnsTypeData()       {}
func (DnsAAAA) dnsTypeData()    {}
func (DnsCNAME) dnsTypeData()   {}
func (DnsNS) dnsTypeData()      {}
func (DnsSOA) dnsTypeData()     {}
func (DnsUnknown) dnsTypeData() {}

// DnsResourceRecord is one answer/authority/additional entry.
type DnsResourceRecord struct {
	Name     string
	Type     uint16
	Class    uint16
	TTL      uint32
	RDLength uint16
	Data     DnsTypeData
}

// DnsLayer is a full DNS message.
type DnsLayer struct {
	Header     DnsHeader
	Questions  []DnsQuestion
	Answers    []DnsResourceRecord
	Authority  []DnsResourceRecord
	Additional []DnsResourceRecord
}

func (DnsLayer) Identifier() Identifier { return IdentDNS }

const (
	dnsTypeA     = 1
	dnsTypeNS    = 2
	dnsTypeCNAME = 5
	dnsTypeSOA   = 6
	dnsTypeAAAA  = 28
)

func decodeDNS(data []byte) (Layer, []byte, error) {
	if len(data) < dnsHeaderLen {
		return nil, nil, shortErr(IdentDNS)
	}
	message := data

	bs := newBitSession(message[2:4])
	qr, _ := bs.take(1)
	opcode, _ := bs.take(4)
	aa, _ := bs.take(1)
	tc, _ := bs.take(1)
	rd, _ := bs.take(1)
	ra, _ := bs.take(1)
	z, _ := bs.take(3)
	rcode, _ := bs.take(4)
	if _, err := bs.close(); err != nil {
		return nil, nil, verifyErr(IdentDNS)
	}
	if z != 0 {
		return nil, nil, verifyErr(IdentDNS)
	}

	header := DnsHeader{
		ID:      uint16(message[0])<<8 | uint16(message[1]),
		QR:      qr == 1,
		Opcode:  uint8(opcode),
		AA:      aa == 1,
		TC:      tc == 1,
		RD:      rd == 1,
		RA:      ra == 1,
		Z:       uint8(z),
		RCODE:   uint8(rcode),
		QDCount: uint16(message[4])<<8 | uint16(message[5]),
		ANCount: uint16(message[6])<<8 | uint16(message[7]),
		NSCount: uint16(message[8])<<8 | uint16(message[9]),
		ARCount: uint16(message[10])<<8 | uint16(message[11]),
	}

	pos := dnsHeaderLen

	questions := make([]DnsQuestion, 0, header.QDCount)
	for i := 0; i < int(header.QDCount); i++ {
		name, next, err := parseDNSName(message, pos, 0)
		if err != nil {
			return nil, nil, err
		}
		pos = next
		if pos+4 > len(message) {
			return nil, nil, shortErr(IdentDNS)
		}
		qtype := uint16(message[pos])<<8 | uint16(message[pos+1])
		qclass := uint16(message[pos+2])<<8 | uint16(message[pos+3])
		pos += 4
		questions = append(questions, DnsQuestion{Name: name, QType: qtype, QClass: qclass})
	}

	parseSection := func(count uint16) ([]DnsResourceRecord, error) {
		records := make([]DnsResourceRecord, 0, count)
		for i := 0; i < int(count); i++ {
			name, next, err := parseDNSName(message, pos, 0)
			if err != nil {
				return nil, err
			}
			pos = next
			if pos+10 > len(message) {
				return nil, shortErr(IdentDNS)
			}
			rtype := uint16(message[pos])<<8 | uint16(message[pos+1])
			rclass := uint16(message[pos+2])<<8 | uint16(message[pos+3])
			ttl := uint32(message[pos+4])<<24 | uint32(message[pos+5])<<16 | uint32(message[pos+6])<<8 | uint32(message[pos+7])
			rdlength := uint16(message[pos+8])<<8 | uint16(message[pos+9])
			pos += 10
			if pos+int(rdlength) > len(message) {
				return nil, shortErr(IdentDNS)
			}
			rdata := message[pos : pos+int(rdlength)]
			rdataStart := pos
			pos += int(rdlength)

			typeData, err := parseRDATA(message, rdataStart, rdata, rtype)
			if err != nil {
				return nil, err
			}

			records = append(records, DnsResourceRecord{
				Name: name, Type: rtype, Class: rclass, TTL: ttl, RDLength: rdlength, Data: typeData,
			})
		}
		return records, nil
	}

	answers, err := parseSection(header.ANCount)
	if err != nil {
		return nil, nil, err
	}
	authority, err := parseSection(header.NSCount)
	if err != nil {
		return nil, nil, err
	}
	additional, err := parseSection(header.ARCount)
	if err != nil {
		return nil, nil, err
	}

	if pos != len(message) {
		return nil, nil, verifyErr(IdentDNS)
	}

	return &DnsLayer{
		Header:     header,
		Questions:  questions,
		Answers:    answers,
		Authority:  authority,
		Additional: additional,
	}, nil, nil
}

func parseRDATA(message []byte, rdataStart int, rdata []byte, rtype uint16) (DnsTypeData, error) {
	switch rtype {
	case dnsTypeA:
		if len(rdata) == 4 {
			ip := make(net.IP, 4)
			copy(ip, rdata)
			return DnsA{Address: ip}, nil
		}
		if len(rdata) == 16 {
			ip := make(net.IP, 16)
			copy(ip, rdata)
			return DnsA{Address: ip}, nil
		}
		return nil, verifyErr(IdentDNS)
	case dnsTypeAAAA:
		if len(rdata) != 16 {
			return nil, verifyErr(IdentDNS)
		}
		ip := make(net.IP, 16)
		copy(ip, rdata)
		return DnsAAAA{Address: ip}, nil
	case dnsTypeCNAME:
		name, _, err := parseDNSName(message, rdataStart, 0)
		if err != nil {
			return nil, err
		}
		return DnsCNAME{Name: name}, nil
	case dnsTypeNS:
		name, _, err := parseDNSName(message, rdataStart, 0)
		if err != nil {
			return nil, err
		}
		return DnsNS{Name: name}, nil
	case dnsTypeSOA:
		mname, next, err := parseDNSName(message, rdataStart, 0)
		if err != nil {
			return nil, err
		}
		rname, next, err := parseDNSName(message, next, 0)
		if err != nil {
			return nil, err
		}
		if next+20 > len(message) {
			return nil, shortErr(IdentDNS)
		}
		u32 := func(off int) uint32 {
			return uint32(message[off])<<24 | uint32(message[off+1])<<16 | uint32(message[off+2])<<8 | uint32(message[off+3])
		}
		return DnsSOA{
			PrimaryNS: mname,
			Mailbox:   rname,
			Serial:    u32(next),
			Refresh:   u32(next + 4),
			Retry:     u32(next + 8),
			Expire:    u32(next + 12),
			Minimum:   u32(next + 16),
		}, nil
	default:
		return DnsUnknown{Raw: rdata}, nil
	}
}

// parseDNSName decodes a (possibly pointer-compressed) name starting at
// offset within message, returning the joined-by-"." name and the offset in
// the original (non-jumped) stream immediately following it. Pointer
// chasing is bounded at dnsMaxPointerDepth.
func parseDNSName(message []byte, offset int, depth int) (string, int, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	cur := offset
	jumped := false
	afterFirst := -1
	first := true

loop:
	for {
		if cur >= len(message) {
			return "", 0, shortErr(IdentDNS)
		}
		lengthByte := message[cur]
		switch {
		case lengthByte == 0:
			if !jumped {
				afterFirst = cur + 1
			}
			cur++
			break loop
		case lengthByte&0xC0 == 0xC0:
			if cur+1 >= len(message) {
				return "", 0, shortErr(IdentDNS)
			}
			ptr := int(lengthByte&0x3F)<<8 | int(message[cur+1])
			if !jumped {
				afterFirst = cur + 2
			}
			depth++
			if depth > dnsMaxPointerDepth {
				return "", 0, depthExceeded(IdentDNS)
			}
			cur = ptr
			jumped = true
			continue
		case lengthByte&0xC0 != 0:
			return "", 0, verifyErr(IdentDNS)
		default:
			labelLen := int(lengthByte)
			cur++
			if cur+labelLen > len(message) {
				return "", 0, shortErr(IdentDNS)
			}
			if !first {
				buf.WriteByte('.')
			}
			buf.Write(message[cur : cur+labelLen])
			first = false
			cur += labelLen
		}
	}
	return buf.String(), afterFirst, nil
}
