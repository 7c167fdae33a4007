package sequence

// Default returns the built-in five-message lead-magnet sequence:
// immediate welcome, then follow-ups at +24h, +48h, +72h, +96h.
func Default() *Sequence {
	return &Sequence{
		Messages: []Message{
			{ID: "welcome", TemplateKey: "welcome", Subject: "Your guide is here, {{ first_name | default: \"friend\" }}!", DelayHours: 0},
			{ID: "day-1", TemplateKey: "quick_win", Subject: "One thing to try today", DelayHours: 24},
			{ID: "day-2", TemplateKey: "case_study", Subject: "How Maria doubled her signups", DelayHours: 48},
			{ID: "day-3", TemplateKey: "objections", Subject: "\"But does this actually work?\"", DelayHours: 72},
			{ID: "day-4", TemplateKey: "offer", Subject: "Last note from me (plus a thank-you)", DelayHours: 96},
		},
	}
}

// Body returns the HTML body for a template key from the built-in copy.
func Body(templateKey string) (string, bool) {
	body, ok := defaultBodies[templateKey]
	return body, ok
}

// defaultBodies holds the literal email copy, keyed by template key.
// Bodies are Liquid templates rendered with the subscriber context.
var defaultBodies = map[string]string{
	"welcome": `<html><body>
<p>Hey {{ first_name | default: "there" }},</p>
<p>Thanks for grabbing the guide — it's on its way to your inbox right now,
and this email is your backup link in case the download gets lost.</p>
<p>Over the next four days I'll send you one short email a day with the
exact steps I use to put the guide into practice. No fluff, each one takes
under five minutes to read.</p>
<p>Talk tomorrow,<br>— Sam</p>
</body></html>`,

	"quick_win": `<html><body>
<p>Hi {{ first_name | default: "there" }},</p>
<p>Yesterday you got the guide. Today, one thing to try: open chapter 2 and
do the ten-minute audit on page 14. Most people find at least one quick win
the first time through.</p>
<p>Hit reply and tell me what you found — I read every response.</p>
<p>— Sam</p>
</body></html>`,

	"case_study": `<html><body>
<p>{{ first_name | default: "Hey" }}, quick story today.</p>
<p>Maria ran the audit from yesterday's email on her landing page and found
her form was asking for six fields. She cut it to two. Signups doubled in a
week. Same traffic, same offer.</p>
<p>The lesson: the guide works when you actually run the checklists, not
when it sits in a downloads folder.</p>
<p>— Sam</p>
</body></html>`,

	"objections": `<html><body>
<p>Hi {{ first_name | default: "there" }},</p>
<p>Whenever I share this material someone asks: "does this work if my list
is tiny / my niche is weird / I hate writing?" Short answer: yes, and
chapter 5 covers exactly those three cases.</p>
<p>If you have a different "but what about..." — reply and ask. That's what
I'm here for.</p>
<p>— Sam</p>
</body></html>`,

	"offer": `<html><body>
<p>{{ first_name | default: "Hey" }}, last scheduled note from me.</p>
<p>Thanks for reading along this week. If you worked through the guide and
want to go deeper, the full course is open this month — details on the site.
No pressure either way; the free material stands on its own.</p>
<p>This inbox stays open. Reply any time.</p>
<p>— Sam</p>
</body></html>`,
}
