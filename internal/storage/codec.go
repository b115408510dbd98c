package storage

import (
	"encoding/json"
	"errors"

	"structsearch/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps new records.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeOrganism(o model.OrganismRecord) ([]byte, error) {
	return json.Marshal(o)
}

func DecodeOrganism(data []byte) (model.OrganismRecord, error) {
	var organism model.OrganismRecord
	if err := json.Unmarshal(data, &organism); err != nil {
		return model.OrganismRecord{}, err
	}
	if err := checkVersion(organism.VersionedRecord); err != nil {
		return model.OrganismRecord{}, err
	}
	return organism, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
