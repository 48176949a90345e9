package sitemap

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/use-agent/cortex/cortexerr"
)

// magic identifies a Cortex binary site map, version 1.
var magic = [4]byte{'C', 'T', 'X', '1'}

// Serialize encodes m into Cortex's binary SiteMap format (§4.1/§6):
//
//	Header · URL pool · nodes · features · edge_index · edges ·
//	action_index · actions · cluster_assignments · cluster_centroids
//
// The header is written last-to-first conceptually but occupies the first
// bytes of the output; its counts and CRC are computed from the body so the
// whole call is a single pass: body is built first, then the header is
// prepended.
func Serialize(m *SiteMap) ([]byte, error) {
	if err := validateShape(m); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writeURLPool(&body, m.URLs)
	writeNodes(&body, m.Nodes)
	writeFeatures(&body, m.Features)
	writeU32Slice(&body, m.EdgeIndex)
	writeEdges(&body, m.Edges)
	writeU32Slice(&body, m.ActionIndex)
	writeActions(&body, m.Actions)
	writeU16Slice(&body, m.ClusterAssignments)
	writeFeatures(&body, m.ClusterCentroids)

	bodyBytes := body.Bytes()
	checksum := crc32.ChecksumIEEE(bodyBytes)

	var out bytes.Buffer
	out.Write(magic[:])
	writeU16(&out, m.Version)
	writeU16(&out, uint16(len(m.Domain)))
	out.WriteString(m.Domain)
	writeU32(&out, uint32(len(m.Nodes)))
	writeU32(&out, uint32(len(m.Edges)))
	writeU32(&out, uint32(len(m.Actions)))
	writeU16(&out, uint16(len(m.ClusterCentroids)))
	writeU32(&out, checksum)
	out.Write(bodyBytes)

	return out.Bytes(), nil
}

func validateShape(m *SiteMap) error {
	n := len(m.Nodes)
	if len(m.URLs) != n || len(m.Features) != n || len(m.ClusterAssignments) != n {
		return cortexerr.New(cortexerr.Corrupt, "sitemap: URLs/Nodes/Features/ClusterAssignments length mismatch", nil)
	}
	if len(m.EdgeIndex) != n+1 {
		return cortexerr.New(cortexerr.Corrupt, "sitemap: EdgeIndex length must be NodeCount+1", nil)
	}
	if len(m.ActionIndex) != n+1 {
		return cortexerr.New(cortexerr.Corrupt, "sitemap: ActionIndex length must be NodeCount+1", nil)
	}
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeF32(buf *bytes.Buffer, v float32) {
	writeU32(buf, math.Float32bits(v))
}

func writeURLPool(buf *bytes.Buffer, urls []string) {
	for _, u := range urls {
		writeU32(buf, uint32(len(u)))
		buf.WriteString(u)
	}
}

func writeNodes(buf *bytes.Buffer, nodes []NodeRecord) {
	for _, n := range nodes {
		buf.WriteByte(byte(n.PageType))
		buf.WriteByte(n.Confidence)
		writeU16(buf, uint16(n.Flags))
		buf.WriteByte(n.Freshness)
		writeF32(buf, n.FeatureNorm)
	}
}

func writeFeatures(buf *bytes.Buffer, vecs [][FeatureDim]float32) {
	for _, v := range vecs {
		for _, f := range v {
			writeF32(buf, f)
		}
	}
}

func writeU32Slice(buf *bytes.Buffer, s []uint32) {
	for _, v := range s {
		writeU32(buf, v)
	}
}

func writeU16Slice(buf *bytes.Buffer, s []uint16) {
	for _, v := range s {
		writeU16(buf, v)
	}
}

func writeEdges(buf *bytes.Buffer, edges []EdgeRecord) {
	for _, e := range edges {
		writeU32(buf, e.TargetNode)
		buf.WriteByte(byte(e.EdgeType))
		buf.WriteByte(e.Weight)
		writeU16(buf, uint16(e.Flags))
	}
}

func writeActions(buf *bytes.Buffer, actions []ActionRecord) {
	for _, a := range actions {
		buf.WriteByte(a.OpCode.Category)
		buf.WriteByte(a.OpCode.Action)
		writeU32(buf, a.SelectorRef)
		buf.WriteByte(a.Risk)
		buf.WriteByte(a.Confidence)
	}
}

