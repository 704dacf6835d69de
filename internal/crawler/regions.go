package crawler

// DefaultRegions is the ordered crawl plan. Checkpoint indices refer to
// positions in this slice, so entries must never be reordered or removed;
// append new regions at the end.
var DefaultRegions = []Region{
	{Name: "New York", Subdivision: "NY"},
	{Name: "Bridgeport", Subdivision: "CT"},
	{Name: "Stamford", Subdivision: "CT"},
	{Name: "Kingston", Subdivision: "NY"},
	{Name: "Newark", Subdivision: "NJ"},
	{Name: "Edison", Subdivision: "NJ"},
	{Name: "Torrington", Subdivision: "CT"},
	{Name: "Trenton", Subdivision: "NJ"},
	{Name: "Ewing", Subdivision: "NJ"},
	{Name: "San Francisco", Subdivision: "CA"},
	{Name: "San Jose", Subdivision: "CA"},
	{Name: "Oakland", Subdivision: "CA"},
	{Name: "Napa", Subdivision: "CA"},
	{Name: "Fremont", Subdivision: "CA"},
	{Name: "Sunnyvale", Subdivision: "CA"},
	{Name: "Santa Clara", Subdivision: "CA"},
	{Name: "Santa Cruz", Subdivision: "CA"},
	{Name: "Watsonville", Subdivision: "CA"},
	{Name: "Santa Rosa", Subdivision: "CA"},
	{Name: "Petaluma", Subdivision: "CA"},
	{Name: "Vallejo", Subdivision: "CA"},
	{Name: "Fairfield", Subdivision: "CA"},
	{Name: "Philidelphia", Subdivision: "PA"},
	{Name: "Camden", Subdivision: "PA"},
	{Name: "Vineland", Subdivision: "PA"},
	{Name: "Los Angeles", Subdivision: "CA"},
	{Name: "Long Beach", Subdivision: "CA"},
	{Name: "Santa Ana", Subdivision: "CA"},
	{Name: "Oxnard", Subdivision: "CA"},
	{Name: "Thousand Oaks", Subdivision: "CA"},
	{Name: "Ventura", Subdivision: "CA"},
	{Name: "Riverside", Subdivision: "CA"},
	{Name: "San Bernadino", Subdivision: "CA"},
	{Name: "Ontario", Subdivision: "CA"},
	{Name: "Phoenix", Subdivision: "AZ"},
	{Name: "Portland", Subdivision: "OR"},
	{Name: "Vancouver", Subdivision: "WA"},
	{Name: "Hillsboro", Subdivision: "OR"},
	{Name: "Cleaveland", Subdivision: "OH"},
	{Name: "Akron", Subdivision: "OH"},
	{Name: "Elyria", Subdivision: "OH"},
	{Name: "Boulder", Subdivision: "CO"},
	{Name: "Denver", Subdivision: "CO"},
	{Name: "Aurora", Subdivision: "CO"},
	{Name: "Boulder", Subdivision: "CO"},
	{Name: "New Orleans", Subdivision: "LA"},
	{Name: "Metairie", Subdivision: "LA"},
	{Name: "Hammond", Subdivision: "MS"},
	{Name: "Charlotte", Subdivision: "NC"},
	{Name: "Concord", Subdivision: "SC"},
	{Name: "Gastonia", Subdivision: "NC"},
	{Name: "Albemarle", Subdivision: "NC"},
	{Name: "Durham", Subdivision: "NC"},
	{Name: "Rraleigh", Subdivision: "NC"},
	{Name: "Myrtle Bech", Subdivision: "SC"},
	{Name: "Conway", Subdivision: "SC"},
	{Name: "Charleston", Subdivision: "SC"},
	{Name: "Wilmington", Subdivision: "NC"},
	{Name: "Georgetown", Subdivision: "SC"},
	{Name: "North Myrtle Beach", Subdivision: "SC"},
	{Name: "Virginia Beach", Subdivision: "VA"},
	{Name: "Norfolk", Subdivision: "VA"},
	{Name: "Newport News", Subdivision: "VA"},
	{Name: "Hampton", Subdivision: "VA"},
	{Name: "Elizabeth City", Subdivision: "NC"},
	{Name: "Kill Devil Hills", Subdivision: "NC"},
	{Name: "Savannah", Subdivision: "GA"},
	{Name: "Hinesville", Subdivision: "GA"},
	{Name: "Fort Stewart", Subdivision: "GA"},
	{Name: "Dallas", Subdivision: "TX"},
	{Name: "Fort Worth", Subdivision: "TX"},
	{Name: "Austin", Subdivision: "TX"},
	{Name: "Houston", Subdivision: "TX"},
	{Name: "Washington", Subdivision: "DC"},
	{Name: "Chicago", Subdivision: "IL"},
	{Name: "Evanston", Subdivision: "IL"},
}
