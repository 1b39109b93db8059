package protocol_test

import (
	"bytes"
	"math"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/elpida/protocol"
)

var _ = Describe("Writer", func() {
	Describe("EncodeQuery", func() {
		It("encodes a call query with the discriminant first", func() {
			data, err := protocol.EncodeQuery(&protocol.CallQuery{Solution: []float64{1, 1}})
			Expect(err).To(Succeed())
			Expect(string(data)).To(Equal(`{"query_type":"call","solution":[1,1]}`))
		})

		It("encodes a nil solution as an empty array", func() {
			data, err := protocol.EncodeQuery(&protocol.CallQuery{})
			Expect(err).To(Succeed())
			Expect(string(data)).To(Equal(`{"query_type":"call","solution":[]}`))
		})

		It("encodes new_run and stop queries", func() {
			Expect(protocol.EncodeQuery(&protocol.NewRunQuery{})).To(Equal([]byte(`{"query_type":"new_run"}`)))
			Expect(protocol.EncodeQuery(&protocol.StopQuery{})).To(Equal([]byte(`{"query_type":"stop"}`)))
		})

		It("encodes raw query fields in name order", func() {
			q := protocol.NewRawQuery("tune", map[string]interface{}{
				"zeta":  "z",
				"alpha": 1,
				"a.b":   true,
			})

			data, err := q.Marshal()
			Expect(err).To(Succeed())
			Expect(string(data)).To(Equal(`{"query_type":"tune","a.b":true,"alpha":1,"zeta":"z"}`))
		})

		It("never writes a newline", func() {
			data, err := protocol.EncodeQuery(&protocol.CallQuery{Solution: []float64{1, 2, 3, 4, 5}})
			Expect(err).To(Succeed())
			Expect(data).NotTo(ContainSubstring("\n"))
		})

		It("fails on numbers JSON cannot carry", func() {
			_, err := protocol.EncodeQuery(&protocol.CallQuery{Solution: []float64{math.NaN()}})
			Expect(err).To(HaveOccurred())
		})

		It("round trips call queries", func() {
			for _, solution := range [][]float64{
				{1, 1},
				{0, 1, 0, 1, 1, 0, 0, 1, 1, 0},
				{math.Pi, -math.E, 1e-300, math.MaxFloat64, 0.1 + 0.2},
			} {
				q := &protocol.CallQuery{Solution: solution}

				data, err := protocol.EncodeQuery(q)
				Expect(err).To(Succeed())

				decoded, err := protocol.DecodeQuery(data)
				Expect(err).To(Succeed())
				Expect(decoded).To(Equal(q))
			}
		})
	})

	Describe("EncodeReply", func() {
		It("encodes a value reply", func() {
			data, err := protocol.EncodeReply(&protocol.ValueReply{Value: []float64{2}})
			Expect(err).To(Succeed())
			Expect(string(data)).To(Equal(`{"reply_type":"value","value":[2]}`))
		})

		It("encodes an error reply with code before message", func() {
			data, err := protocol.EncodeReply(&protocol.ErrorReply{Code: 134, Message: "Unsupported message type"})
			Expect(err).To(Succeed())
			Expect(string(data)).To(Equal(`{"reply_type":"error","code":134,"message":"Unsupported message type"}`))
		})
	})

	Describe("WriteReply", func() {
		It("writes a value reply", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReply(w, &protocol.ValueReply{Value: []float64{2.5}})).To(Succeed())
			Expect(w.String()).To(Equal(`{"reply_type":"value","value":[2.5]}`))
		})

		It("writes an ack reply", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReply(w, &protocol.AckReply{})).To(Succeed())
			Expect(w.String()).To(Equal(`{"reply_type":"ack"}`))
		})

		It("escapes the error message", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReply(w, &protocol.ErrorReply{Code: 254, Message: `bad "input"`})).To(Succeed())
			Expect(w.String()).To(Equal(`{"reply_type":"error","code":254,"message":"bad \"input\""}`))
		})
	})

	Describe("WriteQuery", func() {
		It("writes the encoded query", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteQuery(w, &protocol.NewRunQuery{})).To(Succeed())
			Expect(w.String()).To(Equal(`{"query_type":"new_run"}`))
		})
	})
})
