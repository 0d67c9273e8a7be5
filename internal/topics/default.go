package topics

// defaultTopics is the alias table shipped with the 2025 Guernsey election
// corpus. Order matters: detection is first-match-wins.
var defaultTopics = []Topic{
	{Name: "gst", Label: "GST", Aliases: []string{
		"gst", "goods and services tax", "sales tax", "GST+", "GST +", "taxes", "taxation",
		"income tax", "fiscal policy", "consumption tax",
	}},
	{Name: "education", Label: "Education", Aliases: []string{
		"education", "schools", "schooling", "teaching", "students", "sixth form", "vocational",
		"school", "primary",
	}},
	{Name: "housing", Label: "Housing", Aliases: []string{
		"housing", "homes", "affordable housing", "property", "rents", "rental", "first time buyer",
		"first time buyers", "development", "green field", "brown field",
	}},
	{Name: "health", Label: "Health", Aliases: []string{
		"health", "healthcare", "medical", "hospital", "mental health", "primary care", "GP", "GPs",
		"prescription", "loan", "the health service", "HSC", "Health & Social Services",
		"Health and Social Services",
	}},
	{Name: "transport", Label: "Transport", Aliases: []string{
		"transport", "bus", "ferry", "air travel", "aurigny", "travel", "Condor", "airport",
		"harbour", "Britanny", "runway",
	}},
	{Name: "taxation", Label: "Taxation", Aliases: []string{
		"tax", "taxes", "taxation", "income tax", "fiscal policy", "GST", "corporate tax",
		"corporation tax", "TRP", "Property tax",
	}},
	{Name: "environment", Label: "Environment", Aliases: []string{
		"environment", "climate", "carbon", "sustainability", "green", "wind farm",
		"the environment", "renewable energy", "renewables", "renewable", "tidal",
	}},
	{Name: "island wide voting", Label: "Island Wide Voting", Aliases: []string{
		"island wide voting", "voting system", "electoral reform", "district", "island-wide voting",
		"islandwide voting",
	}},
	{Name: "government reform", Label: "Government Reform", Aliases: []string{
		"government reform", "states reform", "reforming government", "deputies numbers",
		"numbers of deputies", "executive government", "political system", "consensus",
	}},
	{Name: "population", Label: "Population", Aliases: []string{
		"population", "immigration", "the population",
	}},
	{Name: "economy", Label: "Economy", Aliases: []string{
		"growth", "the economy", "GDP", "finance industry", "entrepeneur", "business", "tourism",
		"wind farm", "the economy", "finance",
	}},
	{Name: "arts", Label: "Arts", Aliases: []string{
		"art", "culture", "arts commission", "cultural", "creative", "creatives", "museum", "museums",
		"heritage", "music", "St James",
	}},
	{Name: "sport", Label: "Sport", Aliases: []string{
		"sports", "sports commission", "active8", "active 8", "footes lane", "activity", "outdoor",
		"phsyical", "sports tourism", "beau sejour", "sports development",
	}},
	{Name: "send", Label: "SEND", Aliases: []string{
		"special educational needs", "send", "additional needs", "learning support",
	}},
}

// DefaultTable returns the built-in topic table.
func DefaultTable() *Table {
	t, err := NewTable(defaultTopics)
	if err != nil {
		panic("topics: invalid default table: " + err.Error())
	}
	return t
}
