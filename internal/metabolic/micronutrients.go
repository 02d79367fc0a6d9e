package metabolic

// Micronutrients are daily reference intakes.
type Micronutrients struct {
	VitaminCMg  int `json:"vitamin_c_mg"`
	VitaminDIU  int `json:"vitamin_d_iu"`
	CalciumMg   int `json:"calcium_mg"`
	IronMg      int `json:"iron_mg"`
	MagnesiumMg int `json:"magnesium_mg"`
	ZincMg      int `json:"zinc_mg"`
}

func MicronutrientTargets(gender Gender, age int) Micronutrients {
	m := Micronutrients{
		VitaminCMg:  90,
		VitaminDIU:  600,
		CalciumMg:   1000,
		IronMg:      8,
		MagnesiumMg: 400,
		ZincMg:      11,
	}
	if age >= 50 {
		m.CalciumMg = 1200
	}
	if gender == Female {
		m.VitaminCMg = 75
		m.MagnesiumMg = 310
		m.ZincMg = 8
		if age < 50 {
			m.IronMg = 18
		}
	}
	return m
}
