package demo

import "github.com/shhac/verifai/internal/protocol"

// ArticleTitle and ArticleParagraphs make up the page shown in demo mode.
// Each paragraph leans on a different technique so every overlay state can
// be tried.
const ArticleTitle = "City council weighs new transit plan"

var ArticleParagraphs = []string{
	"The city council met on Tuesday to discuss a proposal that would extend two bus lines into the northern suburbs. The plan would be funded from the existing transport budget and reviewed again in spring.",
	"Everyone already knows this plan is the only sensible choice. Thousands of residents have signed up and the whole city is behind it, so there is no point in waiting any longer.",
	"If the council delays, our streets will become dangerous overnight. Families will be stranded and crime will explode in every neighbourhood left without a bus. Act now before it is too late!",
	"This is a betrayal of every hardworking family! The outrageous arrogance of the opposition is heartbreaking, and anyone who cares about their children should be furious.",
	"Critics point out that ridership fell last year, but they conveniently ignore that the drop happened during road works. The same critics once opposed the tram, and look how that turned out.",
	"At the end of the day, it is what it is. Some people will complain no matter what, and you can't please everyone.",
	"The mayor claimed that the plan was approved by the national transport agency last month. The agency has not published any such decision.",
	"[demo:error] Selecting this paragraph makes the demo service fail, to show the error overlay.",
}

type rule struct {
	technique string
	keywords  []string
	reason    string
}

// rules drive the demo classifier. Matching is case-insensitive on whole
// phrases.
var rules = []rule{
	{
		technique: "bandwagon_effect",
		keywords:  []string{"everyone already knows", "whole city is behind", "thousands of residents", "everybody agrees"},
		reason:    "appeals to what everyone supposedly thinks instead of offering evidence",
	},
	{
		technique: "fear_appeals",
		keywords:  []string{"dangerous", "crime will", "too late", "stranded", "threat"},
		reason:    "relies on alarming predictions to push for an immediate decision",
	},
	{
		technique: "emotional_manipulation",
		keywords:  []string{"betrayal", "outrageous", "heartbreaking", "furious"},
		reason:    "uses charged, emotional language in place of argument",
	},
	{
		technique: "selective_truth",
		keywords:  []string{"conveniently ignore", "look how that turned out", "the same critics"},
		reason:    "picks the facts that suit it and attacks the critics rather than their point",
	},
	{
		technique: "cliche",
		keywords:  []string{"at the end of the day", "it is what it is", "can't please everyone"},
		reason:    "closes the discussion with stock phrases",
	},
}

type claim struct {
	trigger string
	text    string
}

var claims = []claim{
	{
		trigger: "approved by the national transport agency",
		text:    "The plan was approved by the national transport agency: no such decision appears in the agency's published records.",
	},
	{
		trigger: "crime will explode",
		text:    "Crime will explode without the bus extension: no source links bus coverage to the crime rate in the city.",
	},
}

// errorTrigger makes /analyze fail with a server error.
const errorTrigger = "[demo:error]"

// testResult is the fixed answer of /analyze-test.
var testResult = protocol.AnalysisResult{
	Manipulation: true,
	Techniques:   []string{"emotional_manipulation", "fear_appeals", "selective_truth"},
	Explanation: "The content is very likely manipulative (0.950). It combines emotional language, fear appeals and selective truth. " +
		"Its central narrative presents an ordinary administrative step as political revenge, and it mixes confirmed events with " +
		"unverified assumptions and interpretations presented as settled facts. Fact checking confirmed some of the events it " +
		"mentions, but the key claims about who ordered what, when, and why could not be verified.",
	Disinfo: []string{
		"An official order was given to start the searches: there is no independent confirmation of a direct order.",
		"The searches will start next Monday: no source confirms the date.",
		"The motives attributed to the administration are speculative interpretations not supported by the sources provided.",
	},
}
