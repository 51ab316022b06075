// Package decoder turns ids back into their fields under a configured layout.
package decoder

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/zhukov-alex/snowflake/internal/idgen"
	"github.com/zhukov-alex/snowflake/internal/record"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

type Config struct {
	Layout idgen.Layout
	Format string
}

type Service struct {
	cfg    *Config
	out    io.Writer
	logger *zap.Logger
}

func NewService(logger *zap.Logger, cfg *Config, out io.Writer) *Service {
	return &Service{
		cfg:    cfg,
		out:    out,
		logger: logger,
	}
}

// DecodeAll writes one decoded entry per input and returns how many inputs
// could not be parsed.
func (s *Service) DecodeAll(inputs []string) (int, error) {
	logger := s.logger.With(zap.String("method", "DecodeAll"))

	failed := 0
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		v, err := record.ParseID(in)
		if err != nil {
			logger.Warn("skipping malformed id", zap.String("input", in), zap.Error(err))
			failed++
			continue
		}
		if err := s.write(record.Decode(s.cfg.Layout.Decompose(v))); err != nil {
			return failed, fmt.Errorf("write decoded id: %w", err)
		}
	}

	logger.Debug("decode completed", zap.Int("inputs", len(inputs)), zap.Int("failed", failed))
	return failed, nil
}

// DecodeReader decodes whitespace separated ids from r.
func (s *Service) DecodeReader(r io.Reader) (int, error) {
	var inputs []string
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		inputs = append(inputs, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read ids: %w", err)
	}
	return s.DecodeAll(inputs)
}

func (s *Service) write(d record.Decoded) error {
	switch s.cfg.Format {
	case FormatText:
		_, err := fmt.Fprintf(s.out, "%ssequence=%s\n\n", d.Text(), d.Sequence)
		return err
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = s.out.Write(append(b, '\n'))
		return err
	}
}
