package storage_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/elpida/storage"
)

var _ = Describe("storage / InmemoryStore", func() {
	var (
		ctx   context.Context
		store *storage.InmemoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = storage.NewInmemoryStore()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			Expect(func() { store.Close() }).NotTo(Panic())
			Expect(func() { store.Close() }).NotTo(Panic())
		})
	})

	It("an empty store has one empty run", func() {
		value, err := store.Backup()
		Expect(err).To(Succeed())
		Expect(string(value)).To(Equal(`{"runs":[{"evaluations":[]}]}`))
		Expect(store.Runs()).To(Equal(1))

		_, found := store.Best()
		Expect(found).To(BeFalse())
	})

	Describe("Record() / Evaluations()", func() {
		It("can read an evaluation that is recorded", func() {
			Expect(store.Record(ctx, []float64{1, 1}, 2)).To(Succeed())

			Expect(store.Evaluations(0)).To(Equal([]storage.Evaluation{
				{Run: 0, Solution: []float64{1, 1}, Value: 2},
			}))

			value, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(string(value)).To(Equal(`{"runs":[{"evaluations":[{"solution":[1,1],"value":2}]}]}`))
		})

		It("groups evaluations by run", func() {
			Expect(store.Record(ctx, []float64{1}, 1)).To(Succeed())

			run, err := store.NewRun(ctx)
			Expect(err).To(Succeed())
			Expect(run).To(Equal(1))

			Expect(store.Record(ctx, []float64{0}, 0)).To(Succeed())
			Expect(store.Record(ctx, []float64{2}, 4)).To(Succeed())

			Expect(store.Runs()).To(Equal(2))
			Expect(store.Evaluations(0)).To(HaveLen(1))
			Expect(store.Evaluations(1)).To(HaveLen(2))
		})

		It("returns an error for runs that do not exist", func() {
			_, err := store.Evaluations(3)
			Expect(err).To(HaveOccurred())
		})

		It("sends on the update channel when evaluations are recorded", func() {
			updateChan := store.ListenToUpdates()
			Expect(store.Record(ctx, []float64{3}, 9)).To(Succeed())

			update, ok := <-updateChan
			Expect(ok).To(BeTrue())
			Expect(update).To(Equal(&storage.Update{
				Run:        0,
				Evaluation: storage.Evaluation{Run: 0, Solution: []float64{3}, Value: 9},
			}))
		})
	})

	Describe("Best()", func() {
		It("finds the lowest value across runs", func() {
			Expect(store.Record(ctx, []float64{2, 2}, 8)).To(Succeed())
			_, err := store.NewRun(ctx)
			Expect(err).To(Succeed())
			Expect(store.Record(ctx, []float64{1, 0}, 1)).To(Succeed())
			Expect(store.Record(ctx, []float64{1, 1}, 2)).To(Succeed())

			best, found := store.Best()
			Expect(found).To(BeTrue())
			Expect(best).To(Equal(storage.Evaluation{Run: 1, Solution: []float64{1, 0}, Value: 1}))
		})
	})

	Describe("Restore()", func() {
		It("restores a backup", func() {
			backup := []byte(`{"runs":[{"evaluations":[{"solution":[5],"value":25}]}]}`)
			Expect(store.Restore(backup)).To(Succeed())
			Expect(store.Evaluations(0)).To(HaveLen(1))
		})

		It("refuses documents that are not a history", func() {
			Expect(store.Restore([]byte(`{"foo":"bar"}`))).NotTo(Succeed())
		})
	})
})
