package validation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type sampleCandidate struct {
	PrimaryLever string  `validate:"required,oneof=audience creative budget bidding funnel"`
	Confidence   float64 `validate:"min=0,max=1"`
}

var _ = Describe("Validation", func() {
	Describe("ValidateStruct", func() {
		It("passes for a valid struct", func() {
			c := sampleCandidate{PrimaryLever: "budget", Confidence: 0.4}
			Expect(ValidateStruct(&c)).NotTo(HaveOccurred())
		})

		It("reports a missing required field", func() {
			c := sampleCandidate{Confidence: 0.4}
			err := ValidateStruct(&c)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("PrimaryLever is required"))
		})

		It("reports an out-of-enum value", func() {
			c := sampleCandidate{PrimaryLever: "seo", Confidence: 0.4}
			err := ValidateStruct(&c)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("PrimaryLever must be one of"))
		})

		It("reports a confidence outside [0,1]", func() {
			c := sampleCandidate{PrimaryLever: "budget", Confidence: 1.5}
			err := ValidateStruct(&c)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ContainsLearningKeyword", func() {
		DescribeTable("recognizes learning-oriented actions",
			func(action string, expected bool) {
				Expect(ContainsLearningKeyword(action)).To(Equal(expected))
			},
			Entry("pilot", "Run a pilot on 10% of budget", true),
			Entry("a/b test phrasing", "Set up an A/B test of creative variants", true),
			Entry("experiment keyword", "Experiment with bidding caps", true),
			Entry("no learning language", "Increase budget by 20%", false),
			Entry("case insensitive", "VALIDATE the hypothesis with a trial", true),
		)
	})
})
