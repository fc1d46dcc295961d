package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsignal/internal/model"
)

// readSignals loads signals from a .json or .csv file. JSON files hold either
// one signal object or an array of them.
func readSignals(path string) ([]model.Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read signals %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		var signals []model.Signal
		if err := csvutil.Unmarshal(data, &signals); err != nil {
			return nil, eris.Wrapf(err, "decode signals csv %s", path)
		}
		return signals, nil
	case ".json", "":
		return decodeSignalsJSON(data)
	default:
		return nil, eris.Errorf("unsupported signals file type: %s", path)
	}
}

// decodeSignalsJSON accepts a single object or an array.
func decodeSignalsJSON(data []byte) ([]model.Signal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, eris.New("decode signals: empty document")
	}
	if data[0] == '[' {
		var signals []model.Signal
		if err := json.Unmarshal(data, &signals); err != nil {
			return nil, eris.Wrap(err, "decode signals")
		}
		return signals, nil
	}
	var sig model.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, eris.Wrap(err, "decode signal")
	}
	return []model.Signal{sig}, nil
}

// readOfficers loads a roster CSV with name, email, phone, territory_state,
// active and notifications_enabled columns.
func readOfficers(path string) ([]model.Officer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read roster %s", path)
	}
	var officers []model.Officer
	if err := csvutil.Unmarshal(data, &officers); err != nil {
		return nil, eris.Wrapf(err, "decode roster %s", path)
	}
	for i, o := range officers {
		if strings.TrimSpace(o.Email) == "" {
			return nil, eris.Errorf("roster %s: row %d has no email", path, i+2)
		}
		officers[i].TerritoryState = strings.TrimSpace(o.TerritoryState)
	}
	return officers, nil
}
