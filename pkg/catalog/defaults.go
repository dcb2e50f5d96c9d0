package catalog

// defaultParameters is the fallback subscription set used when no descriptor
// document is available. Keys follow the public ISS telemetry naming scheme.
var defaultParameters = []Parameter{
	{
		Key: "USLAB000058",
		Descriptor: Descriptor{
			Description: "Cabin atmospheric pressure in the US Lab",
			OpsNom:      "LAB Cabin Pressure",
			EngNom:      "CABIN_PRESS",
			Units:       "mmHg",
			MinValue:    "0",
			MaxValue:    "1100",
			FormatSpec:  "F6.2",
		},
	},
	{
		Key: "USLAB000059",
		Descriptor: Descriptor{
			Description: "Cabin air temperature in the US Lab",
			OpsNom:      "LAB Cabin Temperature",
			EngNom:      "CABIN_TEMP",
			Units:       "degC",
			MinValue:    "-10",
			MaxValue:    "60",
			FormatSpec:  "F5.1",
		},
	},
	{
		Key: "AIRLOCK000049",
		Descriptor: Descriptor{
			Description: "Crewlock pressure in the joint airlock",
			OpsNom:      "Crewlock Pressure",
			EngNom:      "CREWLOCK_PRESS",
			Units:       "mmHg",
			MinValue:    "0",
			MaxValue:    "1100",
			FormatSpec:  "F6.2",
		},
	},
	{
		Key: "NODE3000001",
		Descriptor: Descriptor{
			Description: "Urine tank quantity in Node 3",
			OpsNom:      "Urine Tank Qty",
			EngNom:      "URINE_TANK_QTY",
			Units:       "%",
			MinValue:    "0",
			MaxValue:    "100",
			FormatSpec:  "F5.1",
		},
	},
	{
		Key: "NODE3000002",
		Descriptor: Descriptor{
			Description: "Waste water tank quantity in Node 3",
			OpsNom:      "Waste Water Tank Qty",
			EngNom:      "WASTE_WATER_QTY",
			Units:       "%",
			MinValue:    "0",
			MaxValue:    "100",
			FormatSpec:  "F5.1",
		},
	},
	{
		Key: "NODE3000003",
		Descriptor: Descriptor{
			Description: "Clean water tank quantity in Node 3",
			OpsNom:      "Clean Water Tank Qty",
			EngNom:      "CLEAN_WATER_QTY",
			Units:       "%",
			MinValue:    "0",
			MaxValue:    "100",
			FormatSpec:  "F5.1",
		},
	},
	{
		Key: "P4000007",
		Descriptor: Descriptor{
			Description: "Solar array 2A output voltage",
			OpsNom:      "SAW 2A Voltage",
			EngNom:      "SAW_2A_VOLTS",
			Units:       "V",
			MinValue:    "0",
			MaxValue:    "180",
			FormatSpec:  "F6.2",
		},
	},
	{
		Key: "S4000007",
		Descriptor: Descriptor{
			Description: "Solar array 1A output voltage",
			OpsNom:      "SAW 1A Voltage",
			EngNom:      "SAW_1A_VOLTS",
			Units:       "V",
			MinValue:    "0",
			MaxValue:    "180",
			FormatSpec:  "F6.2",
		},
	},
	{
		Key: "USLAB000032",
		Descriptor: Descriptor{
			Description: "US GNC attitude control mode",
			OpsNom:      "Attitude Control Mode",
			EngNom:      "GNC_MODE",
			EnumValues:  "0=DEFAULT,1=CMG_TA,2=CMG_ATTITUDE_HOLD,3=THRUSTER_ONLY",
			FormatSpec:  "I1",
		},
	},
	{
		Key: "USLAB000081",
		Descriptor: Descriptor{
			Description: "Station mass as estimated by US GNC",
			OpsNom:      "Station Mass",
			EngNom:      "STATION_MASS",
			Units:       "kg",
			MinValue:    "0",
			MaxValue:    "999999",
			FormatSpec:  "F8.1",
		},
	},
}
