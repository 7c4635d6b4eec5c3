// Package codec implements the Command Codec (spec.md §4.1): stateless
// encode/decode of the single text payload shared between the Coordinator,
// data nodes, and the gateway.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NVIDIA/lrc-coordinator/cmn"
)

// Verb is one op's keyword. Sub-tokens used inside compound verbs (wa, se,
// reco, st, castfi) share the same namespace since the grammar is
// unambiguous left-to-right (spec.md §4.1).
type Verb string

const (
	VEn     Verb = "en"
	VDl     Verb = "dl"
	VRe     Verb = "re"
	VDe     Verb = "de"
	VUp     Verb = "up"
	VDo     Verb = "do"
	VGa     Verb = "ga"
	VWa     Verb = "wa"
	VSe     Verb = "se"
	VReco   Verb = "reco"
	VSt     Verb = "st"
	VCastFi Verb = "castfi"
)

// Op is one token of a command: a verb plus whichever operands it needs.
// Not every field is meaningful for every verb — see the doc comment on
// each Verb constant's wire shape in spec.md §4.1.
type Op struct {
	Verb  Verb
	Block string   // en, dl, se, reco, castfi
	Dst   string   // se
	Peers []string // wa
}

// Command is an ordered sequence of Ops; it is exactly the "single text
// payload interpreted left-to-right" the codec emits, built without any
// in-place string concatenation of raw buffers (design note on gw_cmd).
type Command []Op

// En: "en<blkName>" — expect an incoming write for this block.
func En(block string) Command { return Command{{Verb: VEn, Block: block}} }

// Dl: "dl<blkName>" — prepare to serve this block.
func Dl(block string) Command { return Command{{Verb: VDl, Block: block}} }

// Re: "re" — re-send your block on the data port.
func Re() Command { return Command{{Verb: VRe}} }

// Wa builds the "wa<N>blk<ip1>...<ipN>" sub-token, waiting for len(peers)
// block payloads to XOR together.
func Wa(peers ...string) Op { return Op{Verb: VWa, Peers: peers} }

// Se builds the "se<blkName><dstIp>" sub-token.
func Se(block, dst string) Op { return Op{Verb: VSe, Block: block, Dst: dst} }

// Reco builds the "reco<blkName>" sub-token (produce-and-keep as a named
// block, used by upcode/downcode targets).
func Reco(block string) Op { return Op{Verb: VReco, Block: block} }

// RecoBare builds the bare "reco" sub-token ending a decode program
// (produce-and-keep reconstruction of the missing block).
func RecoBare() Op { return Op{Verb: VReco} }

// St builds the "st" stage-separator sub-token.
func St() Op { return Op{Verb: VSt} }

// CastFi builds the "castfi<blkName>" sub-token: store the result locally
// as a new block flagged as a freshly computed fast-code local parity.
func CastFi(block string) Op { return Op{Verb: VCastFi, Block: block} }

// De starts a decode compound command, followed by the given steps.
func De(steps ...Op) Command { return append(Command{{Verb: VDe}}, steps...) }

// Up starts an upcode compound command.
func Up(steps ...Op) Command { return append(Command{{Verb: VUp}}, steps...) }

// Do starts a downcode compound command.
func Do(steps ...Op) Command { return append(Command{{Verb: VDo}}, steps...) }

// Ga starts a gateway program header: "ga<N>" where N is the number of
// targets/racks this program serves, followed by one wa/se pair per
// target (spec.md §4.5: "Multiple targets share a single gateway command
// (chained with ga<l_c> header the first time, wa…se… appended
// thereafter)").
func Ga(n int, steps ...Op) Command {
	return append(Command{{Verb: VGa, Block: strconv.Itoa(n)}}, steps...)
}

// String renders the command to its exact wire grammar. IPs are emitted
// as 15-char fixed-width strings, block names as 14-char fixed-width
// strings; concatenation needs no delimiters because widths are known
// (spec.md §4.1).
func (c Command) String() string {
	var b strings.Builder
	for _, op := range c {
		writeOp(&b, op)
	}
	return b.String()
}

func writeOp(b *strings.Builder, op Op) {
	switch op.Verb {
	case VEn, VDl:
		b.WriteString(string(op.Verb))
		writeBlock(b, op.Block)
	case VRe, VDe, VUp, VDo, VSt:
		b.WriteString(string(op.Verb))
	case VGa:
		b.WriteString(string(op.Verb))
		b.WriteString(op.Block) // N, as decimal digits — not fixed width
	case VWa:
		b.WriteString(string(op.Verb))
		b.WriteString(strconv.Itoa(len(op.Peers)))
		b.WriteString("blk")
		for _, ip := range op.Peers {
			writeIP(b, ip)
		}
	case VSe:
		b.WriteString(string(op.Verb))
		writeBlock(b, op.Block)
		writeIP(b, op.Dst)
	case VReco:
		b.WriteString(string(op.Verb))
		if op.Block != "" {
			writeBlock(b, op.Block)
		}
	case VCastFi:
		b.WriteString(string(op.Verb))
		writeBlock(b, op.Block)
	}
}

func writeBlock(b *strings.Builder, name string) {
	padded, err := cmn.PadBlock(name)
	if err != nil {
		// Names are validated on ingest (design note); a width violation
		// here means a caller built an Op by hand with a bad name.
		padded = name
	}
	b.WriteString(padded)
}

func writeIP(b *strings.Builder, ip string) {
	padded, err := cmn.PadIP(ip)
	if err != nil {
		padded = ip
	}
	b.WriteString(padded)
}

// Parse decodes a wire payload back into a Command. It is the exact
// inverse of String for every command this Coordinator emits; node-side
// code would use it (or an equivalent) to interpret what the Coordinator
// sent. Decoders split by position, never by delimiter search, because
// widths are known in advance (design note).
func Parse(s string) (Command, error) {
	var cmdOut Command
	for len(s) > 0 {
		op, rest, err := parseOne(s)
		if err != nil {
			return nil, cmn.Wrapf(cmn.ErrProtocolViolation, "codec: %v", err)
		}
		cmdOut = append(cmdOut, op)
		s = rest
	}
	return cmdOut, nil
}

func parseOne(s string) (Op, string, error) {
	switch {
	case strings.HasPrefix(s, string(VEn)):
		block, rest, err := takeBlock(s[len(VEn):])
		return Op{Verb: VEn, Block: block}, rest, err
	case strings.HasPrefix(s, string(VDl)):
		block, rest, err := takeBlock(s[len(VDl):])
		return Op{Verb: VDl, Block: block}, rest, err
	case strings.HasPrefix(s, string(VReco)):
		rest := s[len(VReco):]
		if len(rest) == 0 {
			return Op{Verb: VReco}, rest, nil
		}
		block, rest2, err := takeBlock(rest)
		return Op{Verb: VReco, Block: block}, rest2, err
	case strings.HasPrefix(s, string(VRe)):
		return Op{Verb: VRe}, s[len(VRe):], nil
	case strings.HasPrefix(s, string(VDe)):
		return Op{Verb: VDe}, s[len(VDe):], nil
	case strings.HasPrefix(s, string(VUp)):
		return Op{Verb: VUp}, s[len(VUp):], nil
	case strings.HasPrefix(s, string(VDo)):
		return Op{Verb: VDo}, s[len(VDo):], nil
	case strings.HasPrefix(s, string(VGa)):
		n, rest := takeDigits(s[len(VGa):])
		return Op{Verb: VGa, Block: n}, rest, nil
	case strings.HasPrefix(s, string(VWa)):
		return parseWa(s)
	case strings.HasPrefix(s, string(VSe)):
		return parseSe(s)
	case strings.HasPrefix(s, string(VSt)):
		return Op{Verb: VSt}, s[len(VSt):], nil
	case strings.HasPrefix(s, string(VCastFi)):
		block, rest, err := takeBlock(s[len(VCastFi):])
		return Op{Verb: VCastFi, Block: block}, rest, err
	default:
		return Op{}, "", fmt.Errorf("unrecognized token at %q", s)
	}
}

func parseWa(s string) (Op, string, error) {
	rest := s[len(VWa):]
	nStr, rest := takeDigits(rest)
	n, err := strconv.Atoi(nStr)
	if err != nil {
		return Op{}, "", fmt.Errorf("wa: bad count %q", nStr)
	}
	const blkLit = "blk"
	if !strings.HasPrefix(rest, blkLit) {
		return Op{}, "", fmt.Errorf("wa: expected %q literal", blkLit)
	}
	rest = rest[len(blkLit):]
	peers := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ip, r, err := takeIP(rest)
		if err != nil {
			return Op{}, "", err
		}
		peers = append(peers, ip)
		rest = r
	}
	return Op{Verb: VWa, Peers: peers}, rest, nil
}

func parseSe(s string) (Op, string, error) {
	rest := s[len(VSe):]
	block, rest, err := takeBlock(rest)
	if err != nil {
		return Op{}, "", err
	}
	ip, rest, err := takeIP(rest)
	if err != nil {
		return Op{}, "", err
	}
	return Op{Verb: VSe, Block: block, Dst: ip}, rest, nil
}

func takeBlock(s string) (string, string, error) {
	if len(s) < cmn.FixedBlockLen {
		return "", "", fmt.Errorf("truncated block name in %q", s)
	}
	return cmn.UnpadBlock(s[:cmn.FixedBlockLen]), s[cmn.FixedBlockLen:], nil
}

func takeIP(s string) (string, string, error) {
	if len(s) < cmn.FixedIPLen {
		return "", "", fmt.Errorf("truncated IP in %q", s)
	}
	return cmn.UnpadIP(s[:cmn.FixedIPLen]), s[cmn.FixedIPLen:], nil
}

func takeDigits(s string) (string, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
