package types

import (
	"testing"
)

func TestProcessValidatePayloadMatrix(t *testing.T) {
	cultivation := &CultivationActivity{Name: "weeding"}
	planting := &PlantingActivity{Density: "30x30cm"}
	fertilize := &FertilizationActivity{Type: BaseFertilizer, FertilizationTime: "morning"}
	pesticide := &PestAndDiseaseActivity{Name: "brown planthopper", Type: PestTypePest}
	other := &OtherActivity{Description: "irrigation check"}

	cases := []struct {
		name    string
		proc    Process
		wantErr bool
	}{
		{"cultivation ok", Process{Type: ProcessCultivation, Cultivation: cultivation}, false},
		{"planting ok", Process{Type: ProcessPlanting, Planting: planting}, false},
		{"fertilize ok", Process{Type: ProcessFertilize, Fertilization: fertilize}, false},
		{"pesticide ok", Process{Type: ProcessPesticide, PestAndDisease: pesticide}, false},
		{"other ok", Process{Type: ProcessOther, Other: other}, false},
		{"no payload", Process{Type: ProcessCultivation}, true},
		{"two payloads", Process{Type: ProcessCultivation, Cultivation: cultivation, Other: other}, true},
		{"payload does not match type", Process{Type: ProcessPlanting, Cultivation: cultivation}, true},
		{"unknown type", Process{Type: ProcessType("harvesting"), Other: other}, true},
		{"bad fertilization type", Process{Type: ProcessFertilize, Fertilization: &FertilizationActivity{Type: "side_dress"}}, true},
		{"bad pest type", Process{Type: ProcessPesticide, PestAndDisease: &PestAndDiseaseActivity{Type: "fungus"}}, true},
		{"disease ok", Process{Type: ProcessPesticide, PestAndDisease: &PestAndDiseaseActivity{Name: "blast", Type: PestTypeDisease}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.proc.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestHashPrivateIDIsStableAndOpaque(t *testing.T) {
	a := HashPrivateID("unit-001")
	b := HashPrivateID("unit-001")
	c := HashPrivateID("unit-002")
	if a != b {
		t.Fatalf("hash must be deterministic")
	}
	if a == c {
		t.Fatalf("distinct ids must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 digest, got %q", a)
	}
	if a == "unit-001" {
		t.Fatalf("raw id must not survive hashing")
	}
}

func TestProjectStatus(t *testing.T) {
	for _, s := range []ProjectStatus{StatusInProgress, StatusHarvesting, StatusAlmostFinished, StatusFinished, StatusCancelled} {
		if !s.Valid() {
			t.Fatalf("status %q should be valid", s)
		}
	}
	if ProjectStatus("done").Valid() {
		t.Fatalf("unknown status accepted")
	}
	if StatusInProgress.Terminal() || StatusHarvesting.Terminal() || StatusAlmostFinished.Terminal() {
		t.Fatalf("active statuses must not be terminal")
	}
	if !StatusFinished.Terminal() || !StatusCancelled.Terminal() {
		t.Fatalf("finished and cancelled must be terminal")
	}
}
