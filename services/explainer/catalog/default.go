// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import "github.com/clinrisk/riskview/services/explainer/datatypes"

func zero() *float64 { v := 0.0; return &v }

// Default returns the built-in cardiovascular-risk catalog used when no
// catalog file is configured. Medication doses default to zero (not taking
// the drug); everything else starts unset so the model's imputation applies.
func Default() *Catalog {
	return &Catalog{
		Version: 1,
		Features: []datatypes.Feature{
			// Demographics
			{Name: "anchor_age", Label: "Age", Category: datatypes.CategoryDemographics,
				IntegerOnly: true, NonNegative: true, Max: 120},
			{Name: "gender_encoded", Label: "Gender", Category: datatypes.CategoryDemographics,
				IntegerOnly: true, NonNegative: true, Max: 1},

			// Vitals
			{Name: "BMI", Label: "BMI", Category: datatypes.CategoryVitals,
				NonNegative: true, Max: 80, Step: 0.1},
			{Name: "systolic", Label: "Systolic BP", Category: datatypes.CategoryVitals,
				IntegerOnly: true, NonNegative: true, Max: 300},
			{Name: "diastolic", Label: "Diastolic BP", Category: datatypes.CategoryVitals,
				IntegerOnly: true, NonNegative: true, Max: 200},

			// Labs
			{Name: "white_blood_cells", Label: "White Blood Cells", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 0.1},
			{Name: "urea_nitrogen", Label: "Urea Nitrogen", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 1},
			{Name: "neutrophils", Label: "Neutrophils", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 0.1},
			{Name: "monocytes", Label: "Monocytes", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 0.1},
			{Name: "glucose", Label: "Glucose", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 1},
			{Name: "mch", Label: "MCH", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 0.1},
			{Name: "calcium_total", Label: "Calcium, Total", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 0.1},
			{Name: "lymphocytes", Label: "Lymphocytes", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 0.1},
			{Name: "creatinine", Label: "Creatinine", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 0.1},
			{Name: "sodium", Label: "Sodium", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 1},
			{Name: "pt", Label: "PT", Category: datatypes.CategoryLabs,
				NonNegative: true, Step: 0.1},

			// Medication doses, mg/day. Zero means not prescribed.
			{Name: "imatinib_dose", Label: "Imatinib dose", Category: datatypes.CategoryMedications,
				IntegerOnly: true, NonNegative: true, Max: 800, Default: zero()},
			{Name: "dasatinib_dose", Label: "Dasatinib dose", Category: datatypes.CategoryMedications,
				IntegerOnly: true, NonNegative: true, Max: 180, Default: zero()},
			{Name: "nilotinib_dose", Label: "Nilotinib dose", Category: datatypes.CategoryMedications,
				IntegerOnly: true, NonNegative: true, Max: 800, Default: zero()},
			{Name: "ponatinib_dose", Label: "Ponatinib dose", Category: datatypes.CategoryMedications,
				IntegerOnly: true, NonNegative: true, Max: 45, Default: zero()},
			{Name: "ruxolitinib_dose", Label: "Ruxolitinib dose", Category: datatypes.CategoryMedications,
				IntegerOnly: true, NonNegative: true, Max: 50, Default: zero()},
		},
	}
}
