package report

// Sample returns a fixed, valid report used by the CLI sample mode and tests.
func Sample() Report {
	return Report{
		OverallScore: 75,
		ATS: Section{
			Score: 78,
			Tips: []Tip{
				{Type: TipGood, Tip: "Good use of keywords"},
				{Type: TipImprove, Tip: "Add more technical skills"},
			},
		},
		ToneAndStyle: Section{
			Score: 80,
			Tips: []Tip{
				{Type: TipGood, Tip: "Professional tone", Explanation: "The language is clear and professional"},
				{Type: TipImprove, Tip: "Less passive voice", Explanation: "Use more active voice for impact"},
			},
		},
		Content: Section{
			Score: 72,
			Tips: []Tip{
				{Type: TipGood, Tip: "Clear achievements", Explanation: "Achievements are well documented"},
				{Type: TipImprove, Tip: "Quantify results more", Explanation: "Add more numbers and metrics"},
			},
		},
		Structure: Section{
			Score: 80,
			Tips: []Tip{
				{Type: TipGood, Tip: "Well organized", Explanation: "Sections flow logically"},
				{Type: TipImprove, Tip: "Reduce length", Explanation: "Keep to 1-2 pages for better readability"},
			},
		},
		Skills: Section{
			Score: 70,
			Tips: []Tip{
				{Type: TipGood, Tip: "Relevant skills listed", Explanation: "Skills match job requirements well"},
				{Type: TipImprove, Tip: "Highlight technical stack", Explanation: "Make technology choices more prominent"},
			},
		},
	}
}
