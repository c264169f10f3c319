package hmax

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorgonia/hmax/layer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func smallConf() Config {
	conf := DefaultConfig()
	conf.S2 = ProtoConf{Count: 5, Size: 3, Kept: 10}
	conf.S2bCount = 3
	conf.S2bKept = 20
	conf.S3 = ProtoConf{Count: 5, Size: 3, Kept: 10}
	return conf
}

func randImage(r *rand.Rand, rows, cols int) *tensor.Dense {
	backing := make([]float64, rows*cols)
	for i := range backing {
		backing[i] = r.Float64() * 255
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

func constImage(rows, cols int, v float64) *tensor.Dense {
	backing := make([]float64, rows*cols)
	for i := range backing {
		backing[i] = v
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

func testCorpus(seed int64, n, size int) ImageSet {
	r := rand.New(rand.NewSource(seed))
	retVal := make(ImageSet, n)
	for i := range retVal {
		retVal[i] = randImage(r, size, size)
	}
	return retVal
}

func buildTestBank(t *testing.T, seed int64) (*FilterBank, *Builder) {
	b, err := NewBuilder(smallConf(), testCorpus(1, 10, 64), rand.New(rand.NewSource(seed)), nil)
	require.NoError(t, err)
	bank, err := b.Build()
	require.NoError(t, err)
	return bank, b
}

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConfig()
	require.True(t, conf.IsValid(), "%v", conf.Validate())
	assert.Equal(t, []int{7, 9, 11, 13, 15, 17, 19, 21, 23, 25, 27, 29}, conf.S1Sizes)
	assert.Equal(t, 29, conf.MinImageSize())
	assert.Equal(t, 4*250+1000, conf.FeatureLen())

	cases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"no S1 scales", func(c *Config) { c.S1Sizes = nil }},
		{"negative S1", func(c *Config) { c.S1Sizes = []int{7, -1} }},
		{"no orientations", func(c *Config) { c.Orientations = 0 }},
		{"negative sigma", func(c *Config) { c.SigmaS = -1 }},
		{"bad pooling", func(c *Config) { c.Pool.StrideOffset = 8 }},
		{"too many kept", func(c *Config) { c.S2.Kept = 37 }},
		{"no S2", func(c *Config) { c.S2.Count = 0 }},
		{"no S2b scales", func(c *Config) { c.S2bSizes = nil }},
		{"S3 deeper than S2", func(c *Config) { c.S2.Count = 1; c.S3.Kept = 10 }},
		{"no attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
	}
	for _, c := range cases {
		conf := DefaultConfig()
		c.modify(&conf)
		err := conf.Validate()
		assert.True(t, errors.Is(err, ErrInvalidConfig), "%s: got %v", c.name, err)
		assert.False(t, conf.IsValid(), c.name)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{"s2": {"count": 12, "size": 3, "kept": 10}, "workers": 2}`), 0644))

	conf, err := LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, 12, conf.S2.Count)
	assert.Equal(t, 2, conf.Workers)
	assert.Equal(t, DefaultConfig().S1Sizes, conf.S1Sizes)
	assert.Equal(t, DefaultConfig().S3, conf.S3)

	require.NoError(t, os.WriteFile(filename, []byte(`{"bogus": 1}`), 0644))
	_, err = LoadConfig(filename)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filename, []byte(`{"orientations": 0}`), 0644))
	_, err = LoadConfig(filename)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	bank, b := buildTestBank(t, 1337)
	conf := smallConf()
	require.NoError(t, bank.Validate())

	require.Len(t, bank.S1, len(conf.S1Sizes))
	require.Len(t, bank.S2, 5)
	for _, p := range bank.S2 {
		assert.Equal(t, []int{4, 3, 3}, []int(p.Weights.Shape()))
		assert.Equal(t, 10, p.NumActive())
		assert.InDelta(t, 1, p.Norm(), 1e-9)
	}
	require.Len(t, bank.S2b, len(conf.S2bSizes))
	for i, protos := range bank.S2b {
		require.Len(t, protos, 3)
		rf := conf.S2bSizes[i]
		for _, p := range protos {
			assert.Equal(t, []int{4, rf, rf}, []int(p.Weights.Shape()))
			assert.Equal(t, 20, p.NumActive())
		}
	}
	require.Len(t, bank.S3, 5)
	for _, p := range bank.S3 {
		assert.Equal(t, []int{5, 3, 3}, []int(p.Weights.Shape()))
		assert.Equal(t, 10, p.NumActive())
	}

	assert.Len(t, b.Records, 5+4*3+5)
	for _, rec := range b.Records {
		assert.True(t, strings.HasPrefix(rec.Image, "image"))
		assert.True(t, rec.Attempts >= 1)
	}
}

func TestBuildReproducible(t *testing.T) {
	a, _ := buildTestBank(t, 42)
	b, _ := buildTestBank(t, 42)
	c, _ := buildTestBank(t, 43)

	same := func(x, y []layer.Prototype) bool {
		for i := range x {
			if !assert.ObjectsAreEqual(x[i].Weights.Float64s(), y[i].Weights.Float64s()) {
				return false
			}
		}
		return true
	}
	assert.True(t, same(a.S2, b.S2))
	assert.True(t, same(a.S3, b.S3))
	for i := range a.S2b {
		assert.True(t, same(a.S2b[i], b.S2b[i]))
	}
	assert.False(t, same(a.S2, c.S2))
}

func TestBuildErrors(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	_, err := NewBuilder(smallConf(), ImageSet{}, r, nil)
	assert.True(t, errors.Is(err, ErrEmptyCorpus), "got %v", err)

	bad := smallConf()
	bad.Orientations = 0
	_, err = NewBuilder(bad, testCorpus(1, 1, 64), r, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

	_, err = NewBuilder(smallConf(), testCorpus(1, 1, 64), nil, nil)
	assert.Error(t, err)

	// corpus images too small for the S1 filters
	_, err = Build(smallConf(), testCorpus(1, 3, 20), r)
	assert.True(t, errors.Is(err, ErrImageTooSmall), "got %v", err)

	// blank images never yield a usable patch
	conf := smallConf()
	conf.MaxAttempts = 3
	_, err = Build(conf, ImageSet{constImage(64, 64, 0)}, r)
	assert.True(t, errors.Is(err, ErrDegenerate), "got %v", err)
}

func TestInfer(t *testing.T) {
	bank, _ := buildTestBank(t, 1337)
	inf, err := Infer(bank, true)
	require.NoError(t, err)

	img := randImage(rand.New(rand.NewSource(99)), 80, 72)
	fv, err := inf.Infer(img)
	require.NoError(t, err)

	conf := smallConf()
	assert.Len(t, fv.S2b, len(conf.S2bSizes))
	for _, s := range fv.S2b {
		assert.Len(t, s, conf.S2bCount)
	}
	assert.Len(t, fv.S3, conf.S3.Count)
	assert.Equal(t, conf.FeatureLen(), fv.Len())
	for _, v := range fv.Flat() {
		assert.True(t, v >= 0 && v < 1, "feature %v", v)
	}

	// same image, same bank, same vector
	again, err := inf.Infer(img)
	require.NoError(t, err)
	assert.Equal(t, fv.Flat(), again.Flat())

	log := inf.ExecLog()
	for _, name := range []string{"S1", "C1", "S2", "C2", "S3", "S2b [6]"} {
		assert.Contains(t, log, name)
	}
}

func TestInferConcurrent(t *testing.T) {
	bank, _ := buildTestBank(t, 7)
	inf, err := Infer(bank, false)
	require.NoError(t, err)

	imgs := testCorpus(5, 4, 48)
	want := make([][]float64, len(imgs))
	for i, img := range imgs {
		fv, err := inf.Infer(img)
		require.NoError(t, err)
		want[i] = fv.Flat()
	}

	got := make([][]float64, len(imgs))
	errs := make([]error, len(imgs))
	done := make(chan struct{})
	for i := range imgs {
		go func(i int) {
			fv, err := inf.Infer(imgs[i])
			got[i], errs[i] = fv.Flat(), err
			done <- struct{}{}
		}(i)
	}
	for range imgs {
		<-done
	}
	for i := range imgs {
		require.NoError(t, errs[i])
		assert.Equal(t, want[i], got[i])
	}
}

func TestInferUniform(t *testing.T) {
	bank, _ := buildTestBank(t, 1337)
	inf, err := Infer(bank, false)
	require.NoError(t, err)

	a, err := inf.Activations(constImage(64, 64, 128))
	require.NoError(t, err)
	for s, m := range a.S1 {
		for _, v := range m.Float64s() {
			if v > 1e-9 {
				t.Fatalf("uniform image gives S1 response %v at scale %d", v, s)
			}
		}
	}
	fv, err := a.Features()
	require.NoError(t, err)
	for _, v := range fv.Flat() {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestInferErrors(t *testing.T) {
	bank, _ := buildTestBank(t, 1337)
	inf, err := Infer(bank, false)
	require.NoError(t, err)

	cases := []struct {
		name string
		img  *tensor.Dense
	}{
		{"smaller than the smallest RF", randImage(rand.New(rand.NewSource(1)), 5, 5)},
		{"smaller than the largest RF", randImage(rand.New(rand.NewSource(1)), 28, 100)},
	}
	for _, c := range cases {
		_, err := inf.Infer(c.img)
		assert.True(t, errors.Is(err, ErrImageTooSmall), "%s: got %v", c.name, err)
	}

	_, err = inf.Infer(tensor.New(tensor.WithShape(40, 40, 3), tensor.Of(tensor.Float64)))
	assert.Error(t, err)
	_, err = inf.Infer(tensor.New(tensor.WithShape(40, 40), tensor.Of(tensor.Float32)))
	assert.Error(t, err)

	_, err = Infer(nil, false)
	assert.True(t, errors.Is(err, ErrInvalidBank))
}

func TestBankValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(b *FilterBank)
	}{
		{"missing S2 prototype", func(b *FilterBank) { b.S2 = b.S2[:4] }},
		{"empty S3", func(b *FilterBank) { b.S3 = nil }},
		{"missing S2b scale", func(b *FilterBank) { b.S2b = b.S2b[:2] }},
		{"missing S1 orientation", func(b *FilterBank) { b.S1[3] = b.S1[3][:3] }},
		{"wrong S3 depth", func(b *FilterBank) { b.S3[0] = b.S2[0] }},
		{"wrong config", func(b *FilterBank) { b.Conf.S2.Count = 6 }},
		{"extra active weight", func(b *FilterBank) {
			for i, a := range b.S2[1].Active {
				if !a {
					b.S2[1].Active[i] = true
					break
				}
			}
		}},
	}
	for _, c := range cases {
		bank, _ := buildTestBank(t, 3)
		c.modify(bank)
		err := bank.Validate()
		assert.True(t, errors.Is(err, ErrInvalidBank), "%s: got %v", c.name, err)
		_, err = Infer(bank, false)
		assert.Error(t, err, c.name)
	}
}

func TestBankRoundTrip(t *testing.T) {
	bank, _ := buildTestBank(t, 1337)
	img := randImage(rand.New(rand.NewSource(12)), 64, 64)

	inf, err := Infer(bank, false)
	require.NoError(t, err)
	want, err := inf.Infer(img)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, bank.Encode(&buf))
	loaded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, bank.Conf, loaded.Conf)

	inf2, err := Infer(loaded, false)
	require.NoError(t, err)
	got, err := inf2.Infer(img)
	require.NoError(t, err)
	assert.Equal(t, want.Flat(), got.Flat())

	filename := filepath.Join(t.TempDir(), "filters.gob")
	require.NoError(t, bank.Save(filename))
	loaded, err = Load(filename)
	require.NoError(t, err)
	inf3, err := Infer(loaded, false)
	require.NoError(t, err)
	got, err = inf3.Infer(img)
	require.NoError(t, err)
	assert.Equal(t, want.Flat(), got.Flat())
}

func TestBankCorrupt(t *testing.T) {
	bank, _ := buildTestBank(t, 1337)
	var buf bytes.Buffer
	require.NoError(t, bank.Encode(&buf))
	data := buf.Bytes()

	for _, n := range []int{0, 10, len(data) / 2, len(data) - 1} {
		_, err := Decode(bytes.NewReader(data[:n]))
		assert.True(t, errors.Is(err, ErrInvalidBank), "truncated at %d: got %v", n, err)
	}

	// a bank that decodes but is incomplete
	bank.S3 = bank.S3[:2]
	buf.Reset()
	require.NoError(t, bank.Encode(&buf))
	_, err := Decode(&buf)
	assert.True(t, errors.Is(err, ErrInvalidBank), "got %v", err)

	_, err = Load(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}

func TestFeatureVector(t *testing.T) {
	fv := FeatureVector{
		S2b: [][]float64{{0.1, 0.2}, {0.3}},
		S3:  []float64{0.5, 0.25, 1e-17},
	}
	assert.Equal(t, 6, fv.Len())
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.5, 0.25, 1e-17}, fv.Flat())

	var buf bytes.Buffer
	n, err := fv.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "0.1\n0.2\n0.3\n0.5\n0.25\n1e-17\n", buf.String())

	got, err := ReadFeatures(strings.NewReader(buf.String() + "\n"))
	require.NoError(t, err)
	assert.Equal(t, fv.Flat(), got)

	_, err = ReadFeatures(strings.NewReader("0.1\nzero\n"))
	assert.Error(t, err)
}

func TestStatistics(t *testing.T) {
	_, b := buildTestBank(t, 1337)
	var buf bytes.Buffer
	require.NoError(t, b.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1+len(b.Records))
	assert.Equal(t, "layer,index,image,scale,row,col,attempts", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "S2,0,image"))

	filename := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, b.Dump(filename))
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
}

func TestSampler(t *testing.T) {
	bank, _ := buildTestBank(t, 1337)
	s := Sampler{
		Corpus:      testCorpus(2, 3, 64),
		Stack:       bank.c1,
		Size:        4,
		Kept:        7,
		MaxAttempts: 5,
	}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		p, rec, err := s.Sample(r)
		require.NoError(t, err)
		assert.Equal(t, 7, p.NumActive())
		assert.InDelta(t, 1, p.Norm(), 1e-9)
		assert.NoError(t, p.Validate(4, 4, 7))
		assert.Equal(t, 1, rec.Attempts)
	}

	// every scale is too coarse
	s.Size = 30
	_, _, err := s.Sample(r)
	assert.True(t, errors.Is(err, ErrImageTooSmall), "got %v", err)

	s.Size, s.Kept = 3, 37
	_, _, err = s.Sample(r)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

	s.Corpus = ImageSet{}
	_, _, err = s.Sample(r)
	assert.True(t, errors.Is(err, ErrEmptyCorpus), "got %v", err)
}

func TestToDot(t *testing.T) {
	dot := smallConf().ToDot()
	for _, name := range []string{"image", "S1", "C1", "S2", "C2", "S3", "G3", "S2b_6", "G2b_15", "features"} {
		assert.Contains(t, dot, name)
	}
	assert.Contains(t, dot, "->")
	assert.Contains(t, dot, "Sparse NCC")
}

func TestDotLabel(t *testing.T) {
	label, err := dotNode{Name: "S2", Kind: "Sparse NCC", Sizes: []int{3}, Depth: 5, Extra: "10 kept"}.label()
	require.NoError(t, err)
	for _, want := range []string{"<TD>S2</TD>", "<TD>Sparse NCC</TD>", "<TD>[3]</TD>", "<TD>5</TD>", "<TD>10 kept</TD>"} {
		assert.Contains(t, label, want)
	}

	// optional rows are left out
	label, err = dotNode{Name: "image", Kind: "Image"}.label()
	require.NoError(t, err)
	assert.NotContains(t, label, "RF")
	assert.NotContains(t, label, "Channels")
}
