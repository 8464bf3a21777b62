package monitoring

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ProgressBar", func() {
	It("should count finished items", func() {
		bar := &ProgressBar{Total: 10}

		bar.IncrementFinished(3)
		bar.IncrementFinished(2)

		Expect(bar.Finished).To(Equal(uint64(5)))
		Expect(bar.Fraction()).To(Equal(0.5))
	})

	It("should treat an empty bar as complete", func() {
		Expect((&ProgressBar{}).Fraction()).To(Equal(1.0))
	})

	It("should encode with snake case keys", func() {
		bar := &ProgressBar{ID: "b1", Name: "DemandPage", Total: 5000}
		bar.IncrementFinished(1000)

		data, err := json.Marshal(bar)
		Expect(err).ToNot(HaveOccurred())

		var decoded progressBarJSON
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded.Name).To(Equal("DemandPage"))
		Expect(decoded.Total).To(Equal(uint64(5000)))
		Expect(decoded.Finished).To(Equal(uint64(1000)))
		Expect(string(data)).To(ContainSubstring(`"start_time"`))
	})
})
