package model

import (
	"io"
	"os"

	"github.com/YuminosukeSato/poissonmle/pkg/errors"
)

// SaveWeights は係数をJSONファイルに保存する
//
// 使用例:
//
//	w, err := reg.ExportWeights()
//	err = model.SaveWeights(w, "coef.json")
func SaveWeights(weights *ModelWeights, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	defer file.Close()

	return SaveWeightsToWriter(weights, file)
}

// SaveWeightsToWriter は係数をio.Writerに書き出す
func SaveWeightsToWriter(weights *ModelWeights, w io.Writer) error {
	if err := weights.Validate(); err != nil {
		return err
	}
	data, err := weights.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode model weights")
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "write model weights")
	}
	return nil
}

// LoadWeights はJSONファイルから係数を読み込む
func LoadWeights(filename string) (*ModelWeights, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer file.Close()

	return LoadWeightsFromReader(file)
}

// LoadWeightsFromReader はio.Readerから係数を読み込み、検証する
func LoadWeightsFromReader(r io.Reader) (*ModelWeights, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read model weights")
	}
	var weights ModelWeights
	if err := weights.FromJSON(data); err != nil {
		return nil, err
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &weights, nil
}
