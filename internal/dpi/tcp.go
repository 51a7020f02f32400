package dpi

const tcpFixedLen = 20

// TcpFlags are the eight independent control bits, in wire order
// {CWR,ECE,URG,ACK,PSH,RST,SYN,FIN}.
type TcpFlags struct {
	CWR, ECE, URG, ACK, PSH, RST, SYN, FIN bool
}

// TcpLayer is the 20-byte fixed TCP header plus options.
type TcpLayer struct {
	SourcePort uint16
	DestPort   uint16
	Sequence   uint32
	Ack        uint32
	DataOffset uint8 // header length in bytes (already ×4)
	Reserved   uint8
	Flags      TcpFlags
	Window     uint16
	Checksum   uint16
	Urgent     uint16
	Options    []byte
}

func (TcpLayer) Identifier() Identifier { return IdentTCP }

func decodeTCP(data []byte) (Layer, []byte, error) {
	fixed, _, err := takeN(data, tcpFixedLen)
	if err != nil {
		return nil, nil, shortErr(IdentTCP)
	}

	srcPort := uint16(fixed[0])<<8 | uint16(fixed[1])
	dstPort := uint16(fixed[2])<<8 | uint16(fixed[3])
	seq := uint32(fixed[4])<<24 | uint32(fixed[5])<<16 | uint32(fixed[6])<<8 | uint32(fixed[7])
	ack := uint32(fixed[8])<<24 | uint32(fixed[9])<<16 | uint32(fixed[10])<<8 | uint32(fixed[11])

	dataOffsetWords := fixed[12] >> 4
	reserved := (fixed[12] >> 1) & 0x07
	dataOffset := int(dataOffsetWords) * 4
	if dataOffset < tcpFixedLen {
		return nil, nil, verifyErr(IdentTCP)
	}

	flagByte := fixed[13]
	flags := TcpFlags{
		CWR: flagByte&0x80 != 0,
		ECE: flagByte&0x40 != 0,
		URG: flagByte&0x20 != 0,
		ACK: flagByte&0x10 != 0,
		PSH: flagByte&0x08 != 0,
		RST: flagByte&0x04 != 0,
		SYN: flagByte&0x02 != 0,
		FIN: flagByte&0x01 != 0,
	}

	window := uint16(fixed[14])<<8 | uint16(fixed[15])
	checksum := uint16(fixed[16])<<8 | uint16(fixed[17])
	urgent := uint16(fixed[18])<<8 | uint16(fixed[19])

	if len(data) < dataOffset {
		return nil, nil, shortErr(IdentTCP)
	}
	options := data[tcpFixedLen:dataOffset]
	residual := data[dataOffset:]

	return &TcpLayer{
		SourcePort: srcPort,
		DestPort:   dstPort,
		Sequence:   seq,
		Ack:        ack,
		DataOffset: uint8(dataOffset),
		Reserved:   reserved,
		Flags:      flags,
		Window:     window,
		Checksum:   checksum,
		Urgent:     urgent,
		Options:    options,
	}, residual, nil
}

func childrenTCP() []Identifier { return nil }

func bestChildTCP(meta *FrameMetadata) (Identifier, bool) {
	tcp, ok := meta.Last().(*TcpLayer)
	if !ok {
		return 0, false
	}
	if tcp.SourcePort == 53 || tcp.DestPort == 53 {
		return IdentDNS, true
	}
	if tcp.SourcePort == 80 || tcp.DestPort == 80 {
		return IdentHTTP, true
	}
	return 0, false
}
