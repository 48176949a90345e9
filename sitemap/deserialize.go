package sitemap

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/use-agent/cortex/cortexerr"
)

// headerFixedLen is the number of header bytes after the domain string:
// node_count(4) + edge_count(4) + action_count(4) + cluster_count(2) + crc32(4).
const headerFixedLen = 18

// Deserialize decodes a binary SiteMap produced by Serialize, validating the
// magic, version, CRC, and every CSR/index invariant. It returns a Corrupt
// error (never panics) on any violation.
func Deserialize(data []byte) (*SiteMap, error) {
	if len(data) < 8 {
		return nil, cortexerr.New(cortexerr.Corrupt, "sitemap: truncated header", nil)
	}
	if !bytesEqual(data[0:4], magic[:]) {
		return nil, cortexerr.New(cortexerr.Corrupt, "sitemap: bad magic", nil)
	}

	off := 4
	version := binary.LittleEndian.Uint16(data[off:])
	if version != 1 {
		return nil, cortexerr.New(cortexerr.Corrupt, "sitemap: unsupported version", nil)
	}
	off += 2
	domainLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2

	if len(data) < off+domainLen+headerFixedLen {
		return nil, cortexerr.New(cortexerr.Corrupt, "sitemap: truncated header", nil)
	}
	domain := string(data[off : off+domainLen])
	off += domainLen

	nodeCount := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	edgeCount := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	actionCount := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	clusterCount := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	wantCRC := binary.LittleEndian.Uint32(data[off:])
	off += 4

	body := data[off:]
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, cortexerr.New(cortexerr.Corrupt, "sitemap: CRC mismatch", nil)
	}

	r := &reader{buf: body}

	urls, err := r.readURLPool(nodeCount)
	if err != nil {
		return nil, err
	}
	nodes, err := r.readNodes(nodeCount)
	if err != nil {
		return nil, err
	}
	features, err := r.readFeatures(nodeCount)
	if err != nil {
		return nil, err
	}
	edgeIndex, err := r.readU32Slice(nodeCount + 1)
	if err != nil {
		return nil, err
	}
	if err := checkMonotonic(edgeIndex, edgeCount); err != nil {
		return nil, err
	}
	edges, err := r.readEdges(edgeCount)
	if err != nil {
		return nil, err
	}
	actionIndex, err := r.readU32Slice(nodeCount + 1)
	if err != nil {
		return nil, err
	}
	if err := checkMonotonic(actionIndex, actionCount); err != nil {
		return nil, err
	}
	actions, err := r.readActions(actionCount)
	if err != nil {
		return nil, err
	}
	clusterAssignments, err := r.readU16Slice(nodeCount)
	if err != nil {
		return nil, err
	}
	for _, c := range clusterAssignments {
		if clusterCount > 0 && int(c) >= clusterCount {
			return nil, cortexerr.New(cortexerr.Corrupt, "sitemap: cluster assignment out of range", nil)
		}
	}
	centroids, err := r.readFeatures(clusterCount)
	if err != nil {
		return nil, err
	}

	for _, e := range edges {
		if int(e.TargetNode) >= nodeCount {
			return nil, cortexerr.New(cortexerr.Corrupt, "sitemap: edge target out of range", nil)
		}
	}

	return &SiteMap{
		Version:            version,
		Domain:             domain,
		URLs:               urls,
		Nodes:              nodes,
		Features:           features,
		EdgeIndex:          edgeIndex,
		Edges:              edges,
		ActionIndex:        actionIndex,
		Actions:            actions,
		ClusterAssignments: clusterAssignments,
		ClusterCentroids:   centroids,
	}, nil
}

func checkMonotonic(index []uint32, total int) error {
	for i := 1; i < len(index); i++ {
		if index[i] < index[i-1] {
			return cortexerr.New(cortexerr.Corrupt, "sitemap: CSR index not monotonic", nil)
		}
	}
	if len(index) > 0 && int(index[len(index)-1]) != total {
		return cortexerr.New(cortexerr.Corrupt, "sitemap: CSR index final offset mismatch", nil)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// reader walks a body buffer sequentially, the mirror image of the write*
// helpers in serialize.go.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return cortexerr.New(cortexerr.Corrupt, "sitemap: unexpected end of body", nil)
	}
	return nil
}

func (r *reader) readU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) readU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) readF32() (float32, error) {
	v, err := r.readU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) readURLPool(n int) ([]string, error) {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		l, err := r.readU32()
		if err != nil {
			return nil, err
		}
		if err := r.need(int(l)); err != nil {
			return nil, err
		}
		out[i] = string(r.buf[r.pos : r.pos+int(l)])
		r.pos += int(l)
	}
	return out, nil
}

func (r *reader) readNodes(n int) ([]NodeRecord, error) {
	out := make([]NodeRecord, n)
	for i := 0; i < n; i++ {
		if err := r.need(1); err != nil {
			return nil, err
		}
		pt := r.buf[r.pos]
		r.pos++
		if err := r.need(1); err != nil {
			return nil, err
		}
		conf := r.buf[r.pos]
		r.pos++
		flags, err := r.readU16()
		if err != nil {
			return nil, err
		}
		if err := r.need(1); err != nil {
			return nil, err
		}
		fresh := r.buf[r.pos]
		r.pos++
		norm, err := r.readF32()
		if err != nil {
			return nil, err
		}
		out[i] = NodeRecord{
			PageType:    PageType(pt),
			Confidence:  conf,
			Flags:       NodeFlags(flags),
			Freshness:   fresh,
			FeatureNorm: norm,
		}
	}
	return out, nil
}

func (r *reader) readFeatures(n int) ([][FeatureDim]float32, error) {
	out := make([][FeatureDim]float32, n)
	for i := 0; i < n; i++ {
		for d := 0; d < FeatureDim; d++ {
			f, err := r.readF32()
			if err != nil {
				return nil, err
			}
			out[i][d] = f
		}
	}
	return out, nil
}

func (r *reader) readU32Slice(n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := r.readU32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *reader) readU16Slice(n int) ([]uint16, error) {
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		v, err := r.readU16()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *reader) readEdges(n int) ([]EdgeRecord, error) {
	out := make([]EdgeRecord, n)
	for i := 0; i < n; i++ {
		target, err := r.readU32()
		if err != nil {
			return nil, err
		}
		if err := r.need(2); err != nil {
			return nil, err
		}
		et := r.buf[r.pos]
		r.pos++
		weight := r.buf[r.pos]
		r.pos++
		flags, err := r.readU16()
		if err != nil {
			return nil, err
		}
		out[i] = EdgeRecord{
			TargetNode: target,
			EdgeType:   EdgeType(et),
			Weight:     weight,
			Flags:      EdgeFlags(flags),
		}
	}
	return out, nil
}

func (r *reader) readActions(n int) ([]ActionRecord, error) {
	out := make([]ActionRecord, n)
	for i := 0; i < n; i++ {
		if err := r.need(2); err != nil {
			return nil, err
		}
		cat := r.buf[r.pos]
		r.pos++
		act := r.buf[r.pos]
		r.pos++
		selRef, err := r.readU32()
		if err != nil {
			return nil, err
		}
		if err := r.need(2); err != nil {
			return nil, err
		}
		risk := r.buf[r.pos]
		r.pos++
		conf := r.buf[r.pos]
		r.pos++
		out[i] = ActionRecord{
			OpCode:      OpCode{Category: cat, Action: act},
			SelectorRef: selRef,
			Risk:        risk,
			Confidence:  conf,
		}
	}
	return out, nil
}
