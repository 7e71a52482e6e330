package huffrle

import (
	"maps"
	"time"

	"github.com/seiflotfy/huffrle/huffman"
)

// Model is a reusable code table. Texts encoded with a model share its table,
// so every symbol they contain must have been seen during training.
type Model struct {
	config Config
	table  huffman.CodeTable
}

// NewModel creates an empty model with the provided options.
func NewModel(opts ...Option) *Model {
	return &Model{config: newConfig(opts)}
}

// TrainModel trains a reusable model from sample texts.
func TrainModel(samples []string, opts ...Option) (*Model, error) {
	m := NewModel(opts...)
	if err := m.Train(samples); err != nil {
		return nil, err
	}
	return m, nil
}

// ModelFromTable wraps an existing code table, for example one loaded with
// huffman.ReadTable. The table must be a valid prefix code.
func ModelFromTable(table huffman.CodeTable, opts ...Option) (*Model, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	m := NewModel(opts...)
	m.table = maps.Clone(table)
	if m.table == nil {
		m.table = huffman.CodeTable{}
	}
	return m, nil
}

// Train builds the code table from the combined symbol frequencies of samples.
func (m *Model) Train(samples []string) error {
	freqs := make(huffman.FrequencyTable)
	for _, s := range samples {
		for sym, c := range huffman.Count(s) {
			freqs[sym] += c
		}
	}
	m.table = huffman.Codes(huffman.Build(freqs))
	return nil
}

// Encode compresses text with the trained table. Symbols the model was not
// trained on fail with ErrUnknownSymbol.
func (m *Model) Encode(text string) (*Artifact, error) {
	if m.table == nil {
		return nil, ErrUntrainedModel
	}
	start := time.Now()
	enc := &Encoder{config: m.config}
	if len(text) == 0 {
		return enc.emptyArtifact(), nil
	}
	return enc.encode(text, maps.Clone(m.table), start)
}

// Table returns a copy of the trained code table.
func (m *Model) Table() huffman.CodeTable {
	return maps.Clone(m.table)
}

// Trained reports whether the model is ready for Encode.
func (m *Model) Trained() bool {
	return m.table != nil
}
