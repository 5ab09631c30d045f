package schema

import "testing"

func TestDetectClassifiesRoles(t *testing.T) {
	columns := []string{"campaign", "impressions", "clicks", "ctr", "cpc", "suggested_cpc", "campaign_id"}
	rows := []Row{
		{"campaign": "Summer Sale", "impressions": "10000", "clicks": "200", "ctr": "0.02", "cpc": "1.50", "suggested_cpc": "1.75", "campaign_id": "c-1"},
		{"campaign": "Winter Push", "impressions": "8000", "clicks": "120", "ctr": "0.015", "cpc": "1.20", "suggested_cpc": "1.30", "campaign_id": "c-2"},
	}

	got := Detect(columns, rows)

	if got.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", got.RowCount)
	}
	if got.PrimaryDimension != "campaign" {
		t.Fatalf("PrimaryDimension = %q, want campaign", got.PrimaryDimension)
	}
	if len(got.EfficiencyMetrics) != 1 || got.EfficiencyMetrics[0].Name != "ctr" {
		t.Fatalf("EfficiencyMetrics = %+v, want [ctr]", got.EfficiencyMetrics)
	}
	if len(got.CostMetrics) != 1 || got.CostMetrics[0].Name != "cpc" {
		t.Fatalf("CostMetrics = %+v, want [cpc]", got.CostMetrics)
	}
	if len(got.VolumeMetrics) != 2 {
		t.Fatalf("VolumeMetrics = %+v, want 2 entries", got.VolumeMetrics)
	}
	if len(got.ComparativeMetrics) != 1 || got.ComparativeMetrics[0].Name != "suggested_cpc" {
		t.Fatalf("ComparativeMetrics = %+v, want [suggested_cpc]", got.ComparativeMetrics)
	}
	if len(got.Identifiers) != 1 || got.Identifiers[0] != "campaign_id" {
		t.Fatalf("Identifiers = %+v, want [campaign_id]", got.Identifiers)
	}
}

func TestDetectPrimaryDimensionPriority(t *testing.T) {
	columns := []string{"ad_group", "keyword", "clicks"}
	rows := []Row{
		{"ad_group": "ag-1", "keyword": "running shoes", "clicks": "10"},
		{"ad_group": "ag-1", "keyword": "trail shoes", "clicks": "20"},
	}

	got := Detect(columns, rows)
	if got.PrimaryDimension != "keyword" {
		t.Fatalf("PrimaryDimension = %q, want keyword (highest priority)", got.PrimaryDimension)
	}
}

func TestDetectPrimaryDimensionFallsBackToCardinality(t *testing.T) {
	columns := []string{"region", "device", "clicks"}
	rows := []Row{
		{"region": "us", "device": "mobile", "clicks": "10"},
		{"region": "us", "device": "desktop", "clicks": "20"},
		{"region": "eu", "device": "tablet", "clicks": "5"},
	}

	got := Detect(columns, rows)
	if got.PrimaryDimension != "device" {
		t.Fatalf("PrimaryDimension = %q, want device (higher cardinality)", got.PrimaryDimension)
	}
}

func TestDetectEmptyColumns(t *testing.T) {
	got := Detect(nil, nil)
	if got.RowCount != 0 {
		t.Fatalf("RowCount = %d, want 0", got.RowCount)
	}
	if got.Dictionary == "" {
		t.Fatal("Dictionary should never be empty")
	}
}

func TestDetectZeroRows(t *testing.T) {
	got := Detect([]string{"campaign", "clicks"}, nil)
	if got.RowCount != 0 {
		t.Fatalf("RowCount = %d, want 0", got.RowCount)
	}
	if len(got.VolumeMetrics) != 0 {
		t.Fatalf("VolumeMetrics = %+v, want none with zero rows", got.VolumeMetrics)
	}
	if n := len(got.EfficiencyMetrics) + len(got.CostMetrics) + len(got.ComparativeMetrics); n != 0 {
		t.Fatalf("got %d efficiency/cost/comparative metrics, want none with zero rows", n)
	}
}

func TestDetectValueRangeFallback(t *testing.T) {
	// None of these column names match a name pattern; classification
	// rides entirely on the observed values.
	columns := []string{"campaign", "quality", "tier", "total"}
	rows := []Row{
		{"campaign": "Summer", "quality": "0.82", "tier": "5", "total": "1500"},
		{"campaign": "Winter", "quality": "0.41", "tier": "10", "total": "2300"},
		{"campaign": "Spring", "quality": "0.95", "tier": "20", "total": "8100"},
	}

	got := Detect(columns, rows)

	if len(got.EfficiencyMetrics) != 1 || got.EfficiencyMetrics[0].Name != "quality" {
		t.Fatalf("EfficiencyMetrics = %+v, want [quality] (bounded with fractional parts)", got.EfficiencyMetrics)
	}
	if len(got.VolumeMetrics) != 1 || got.VolumeMetrics[0].Name != "total" {
		t.Fatalf("VolumeMetrics = %+v, want [total] (large integers)", got.VolumeMetrics)
	}
	// Integer values in [0,100] have no fractional parts: "tier" must
	// fall through to dimension, not efficiency.
	for _, m := range got.EfficiencyMetrics {
		if m.Name == "tier" {
			t.Fatal("integer-valued column classified as efficiency")
		}
	}
	if got.PrimaryDimension != "campaign" {
		t.Fatalf("PrimaryDimension = %q, want campaign", got.PrimaryDimension)
	}
}

func TestDetectCurrencyHintFallback(t *testing.T) {
	columns := []string{"campaign", "budget_usd"}
	rows := []Row{
		{"campaign": "Summer", "budget_usd": "125.50"},
		{"campaign": "Winter", "budget_usd": "310.00"},
	}

	got := Detect(columns, rows)
	if len(got.CostMetrics) != 1 || got.CostMetrics[0].Name != "budget_usd" {
		t.Fatalf("CostMetrics = %+v, want [budget_usd] via currency hint", got.CostMetrics)
	}
}
