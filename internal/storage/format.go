package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/dreamware/vecdb/internal/vdberrors"
)

// Every record in this package uses the same primitive encoding: fixed-width
// integers in little-endian order, and length-prefixed strings/slices. This
// is the one stable length-prefixed scheme spec.md §6 asks an implementation
// to "pick and freeze" — no cross-implementation interop is required, so
// there is no reason to reach past encoding/binary for it.

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeInt64(w io.Writer, v int64) error {
	return writeUint64(w, uint64(v))
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeFloat32Slice(w io.Writer, data []float32) error {
	if err := writeUint32(w, uint32(len(data))); err != nil {
		return err
	}
	for _, f := range data {
		if err := writeUint32(w, math.Float32bits(f)); err != nil {
			return err
		}
	}
	return nil
}

func readFloat32Slice(r io.Reader) ([]float32, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		bits, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

func writeStringMap(w io.Writer, m map[string]string) error {
	if err := writeUint32(w, uint32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := writeString(w, k); err != nil {
			return err
		}
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readStringMap(r io.Reader) (map[string]string, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// collectionHeader is the on-disk record for a Collection (spec.md §6).
type collectionHeader struct {
	Name      string
	Metric    string
	ID        uint64
	Dimension int
}

func (h collectionHeader) encode() []byte {
	var buf bytes.Buffer
	writeString(&buf, h.Name)
	writeUint64(&buf, h.ID)
	writeString(&buf, h.Metric)
	writeUint32(&buf, uint32(h.Dimension))
	return buf.Bytes()
}

func decodeCollectionHeader(data []byte) (collectionHeader, error) {
	r := bytes.NewReader(data)
	name, err := readString(r)
	if err != nil {
		return collectionHeader{}, vdberrors.Wrap(vdberrors.IO, err, "decode collection header")
	}
	id, err := readUint64(r)
	if err != nil {
		return collectionHeader{}, vdberrors.Wrap(vdberrors.IO, err, "decode collection header")
	}
	metric, err := readString(r)
	if err != nil {
		return collectionHeader{}, vdberrors.Wrap(vdberrors.IO, err, "decode collection header")
	}
	dim, err := readUint32(r)
	if err != nil {
		return collectionHeader{}, vdberrors.Wrap(vdberrors.IO, err, "decode collection header")
	}
	return collectionHeader{Name: name, ID: id, Metric: metric, Dimension: int(dim)}, nil
}

// bucketHeader is the on-disk record for a Bucket (spec.md §6).
type bucketHeader struct {
	ID        uint64
	CreatedAt int64
	UpdatedAt int64
}

func (h bucketHeader) encode() []byte {
	var buf bytes.Buffer
	writeUint64(&buf, h.ID)
	writeInt64(&buf, h.CreatedAt)
	writeInt64(&buf, h.UpdatedAt)
	return buf.Bytes()
}

func decodeBucketHeader(data []byte) (bucketHeader, error) {
	r := bytes.NewReader(data)
	id, err := readUint64(r)
	if err != nil {
		return bucketHeader{}, vdberrors.Wrap(vdberrors.IO, err, "decode bucket header")
	}
	createdAt, err := readInt64(r)
	if err != nil {
		return bucketHeader{}, vdberrors.Wrap(vdberrors.IO, err, "decode bucket header")
	}
	updatedAt, err := readInt64(r)
	if err != nil {
		return bucketHeader{}, vdberrors.Wrap(vdberrors.IO, err, "decode bucket header")
	}
	return bucketHeader{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

// vectorRecord is the on-disk record for a Vector (spec.md §6).
type vectorRecord struct {
	Metadata  map[string]string
	Data      []float32
	Timestamp int64
	ID        uint64
}

func (v vectorRecord) encode() []byte {
	var buf bytes.Buffer
	writeFloat32Slice(&buf, v.Data)
	writeInt64(&buf, v.Timestamp)
	writeStringMap(&buf, v.Metadata)
	writeUint64(&buf, v.ID)
	return buf.Bytes()
}

func decodeVectorRecord(data []byte) (vectorRecord, error) {
	r := bytes.NewReader(data)
	vec, err := readFloat32Slice(r)
	if err != nil {
		return vectorRecord{}, vdberrors.Wrap(vdberrors.IO, err, "decode vector record")
	}
	ts, err := readInt64(r)
	if err != nil {
		return vectorRecord{}, vdberrors.Wrap(vdberrors.IO, err, "decode vector record")
	}
	meta, err := readStringMap(r)
	if err != nil {
		return vectorRecord{}, vdberrors.Wrap(vdberrors.IO, err, "decode vector record")
	}
	id, err := readUint64(r)
	if err != nil {
		return vectorRecord{}, vdberrors.Wrap(vdberrors.IO, err, "decode vector record")
	}
	return vectorRecord{Data: vec, Timestamp: ts, Metadata: meta, ID: id}, nil
}
