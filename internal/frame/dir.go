package frame

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

const (
	colorSuffix = "_color.png"
	depthSuffix = "_depth.png"
)

// DirSource replays a recorded session laid out as NNNNNN_color.png (BGR) and
// NNNNNN_depth.png (16-bit raw depth units) pairs. A sequence number with only
// one half on disk yields an incomplete frame.
type DirSource struct {
	dir        string
	depthScale float64
	seqs       []uint64
	next       int
}

// NewDirSource indexes dir. depthScale converts raw depth units to meters
// (0.001 for millimeter z16 streams).
func NewDirSource(dir string, depthScale float64) (*DirSource, error) {
	if depthScale <= 0 {
		return nil, fmt.Errorf("depth scale must be > 0, got %v", depthScale)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	seen := make(map[uint64]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var stem string
		switch {
		case strings.HasSuffix(name, colorSuffix):
			stem = strings.TrimSuffix(name, colorSuffix)
		case strings.HasSuffix(name, depthSuffix):
			stem = strings.TrimSuffix(name, depthSuffix)
		default:
			continue
		}
		seq, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue
		}
		seen[seq] = struct{}{}
	}

	seqs := make([]uint64, 0, len(seen))
	for seq := range seen {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	return &DirSource{dir: dir, depthScale: depthScale, seqs: seqs}, nil
}

// Len is the number of indexed sequence numbers.
func (s *DirSource) Len() int {
	return len(s.seqs)
}

func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.seqs) {
		return Frame{}, io.EOF
	}
	seq := s.seqs[s.next]
	s.next++

	f := Frame{Seq: seq, Color: gocv.NewMat(), Depth: NewDepthMap(gocv.NewMat())}

	colorPath := s.path(seq, colorSuffix)
	if fileExists(colorPath) {
		f.Color.Close()
		f.Color = gocv.IMRead(colorPath, gocv.IMReadColor)
	}

	depthPath := s.path(seq, depthSuffix)
	if fileExists(depthPath) {
		raw := gocv.IMRead(depthPath, gocv.IMReadUnchanged)
		defer raw.Close()
		if !raw.Empty() {
			if raw.Type() != gocv.MatTypeCV16UC1 {
				f.Close()
				return Frame{}, fmt.Errorf("depth frame %s: want 16-bit single channel, got type %v", depthPath, raw.Type())
			}
			raw.ConvertToWithParams(&f.Depth.Mat, gocv.MatTypeCV32FC1, float32(s.depthScale), 0)
		}
	}

	return f, nil
}

func (s *DirSource) Close() error {
	s.seqs = nil
	return nil
}

func (s *DirSource) path(seq uint64, suffix string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%06d%s", seq, suffix))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
