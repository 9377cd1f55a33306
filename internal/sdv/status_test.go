package sdv

import "testing"

func TestMapStatus(t *testing.T) {
	cases := []struct {
		name  string
		state FieldState
		field string
		want  Status
	}{
		{"blank hidden", FieldState{Code: 0, Hidden: true}, "SBV_PE_PEDTC", StatusHidden},
		{"blank empty", FieldState{Code: 0}, "SBV_PE_PEDTC", StatusNotSent},
		{"blank filled", FieldState{Code: 0, HasValue: true}, "SBV_PE_PEDTC", StatusPending},
		{"blank empty checkbox", FieldState{Code: 0}, "LOGS_AE_AEONGO", StatusPending},
		{"blank empty checkbox suffix", FieldState{Code: 0}, "LOGS_AE_AEACN_LTFL", StatusPending},
		{"verified", FieldState{Code: 2, HasValue: true}, "SBV_PE_PEDTC", StatusVerified},
		{"awaiting", FieldState{Code: 3, HasValue: true}, "SBV_PE_PEDTC", StatusAwaiting},
		{"auto verified", FieldState{Code: 4, HasValue: true}, "SBV_PE_PEDTC", StatusAutoVerified},
		{"hidden wins over checkbox", FieldState{Code: 0, Hidden: true}, "LOGS_AE_AEONGO", StatusHidden},
		{"unknown code", FieldState{Code: 9}, "SBV_PE_PEDTC", StatusNone},
	}
	for _, c := range cases {
		if got := MapStatus(c.state, c.field); got != c.want {
			t.Errorf("%s: MapStatus = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestIsCheckbox(t *testing.T) {
	checkbox := []string{"LOGS_AE_AEONGO", "LOGS_CM_CMONGO", "SBV_MH_OCCUR", "LOGS_AE_AEACN_CM", "LOGS_AE_AESAE", "SBV_X_YN", "LOGS_AE_AEACN_LTFL", "X_PRFL"}
	for _, f := range checkbox {
		if !IsCheckbox(f) {
			t.Errorf("IsCheckbox(%q) = false, want true", f)
		}
	}
	// _LT and _PR as substrings must not match: ALT labs and procedure
	// fields are not checkboxes.
	plain := []string{"SBV_LB_LFP_LBORRES_ALT", "TV_PR_PRSTDTC", "SBV_PE_PEDTC"}
	for _, f := range plain {
		if IsCheckbox(f) {
			t.Errorf("IsCheckbox(%q) = true, want false", f)
		}
	}
}

func TestConstructedKey(t *testing.T) {
	cases := []struct {
		varName, visit, form, want string
	}{
		{"SBV_PEDTC", "SBV", "PE", "SBV_PE_PEDTC"},
		{"SBV_PEDTC", "SBV", "", "SBV_PEDTC"},
		{"PEDTC", "", "PE", "PEDTC"},
		{"LOGS_AETERM", "LOGS", "AE", "LOGS_AE_AETERM"},
	}
	for _, c := range cases {
		if got := constructedKey(c.varName, c.visit, c.form); got != c.want {
			t.Errorf("constructedKey(%q, %q, %q) = %q, want %q", c.varName, c.visit, c.form, got, c.want)
		}
	}
}

func TestUpdateIndexPriority(t *testing.T) {
	dict := map[string]FieldState{}
	hidden := FieldState{Code: 0, Hidden: true, HasValue: true}
	visibleEmpty := FieldState{Code: 0}
	visibleFilled := FieldState{Code: 2, HasValue: true}

	updateIndex(dict, "k", hidden)
	updateIndex(dict, "k", visibleEmpty)
	if dict["k"].Hidden {
		t.Fatal("visible row must replace hidden row")
	}
	updateIndex(dict, "k", hidden)
	if dict["k"].Hidden {
		t.Fatal("hidden row must not replace visible row")
	}
	updateIndex(dict, "k", visibleFilled)
	if dict["k"].Code != 2 {
		t.Fatal("filled row must replace empty row")
	}
	updateIndex(dict, "k", FieldState{Code: 3, HasValue: true})
	if dict["k"].Code != 3 {
		t.Fatal("equal visibility and fill keeps the later row")
	}
	updateIndex(dict, "k", visibleEmpty)
	if dict["k"].Code != 3 {
		t.Fatal("empty row must not replace filled row")
	}
}
