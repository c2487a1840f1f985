package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// SaveModel はモデルをJSON形式でファイルに保存する
//
// パラメータ:
//   - model: 保存する値（ModelWeights やパイプラインのアーティファクト）
//   - filename: 保存先のファイルパス
//
// 戻り値:
//   - error: 保存に失敗した場合のエラー
//
// 使用例:
//
//	w, _ := reg.ExportWeights()
//	err := model.SaveModel(w, "model.json")
func SaveModel(model interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %s", filename)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close file %s", filename)
		}
	}()

	return SaveModelToWriter(model, file)
}

// LoadModel はファイルからモデルを読み込む
//
// パラメータ:
//   - model: 読み込み先（ポインタ）
//   - filename: 読み込み元のファイルパス
//
// 戻り値:
//   - error: 読み込みに失敗した場合のエラー
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// Checksum returns the hex sha256 of w's canonical JSON encoding.
func Checksum(w *ModelWeights) (string, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal model weights")
	}
	// Hash what a reader decodes, not the in-memory value: JSON turns every
	// number into float64, so hash the re-encoded form.
	var canonical ModelWeights
	if err := json.Unmarshal(data, &canonical); err != nil {
		return "", errors.Wrap(err, "failed to decode model weights")
	}
	if data, err = json.Marshal(&canonical); err != nil {
		return "", errors.Wrap(err, "failed to marshal model weights")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
