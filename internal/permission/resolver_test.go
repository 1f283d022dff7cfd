package permission_test

import (
	"context"
	"errors"

	"github.com/frahmantamala/invoice-admin/internal/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubLookup struct {
	role, position, user []string
	err                  error
}

func (s *stubLookup) RolePermissionNames(ctx context.Context, userID int64) ([]string, error) {
	return s.role, nil
}

func (s *stubLookup) PositionPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	return s.position, s.err
}

func (s *stubLookup) UserPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	return s.user, nil
}

var _ = Describe("Resolver", func() {
	ctx := context.Background()

	It("should return the sorted union of all three tiers", func() {
		r := permission.NewResolver(&stubLookup{
			role:     []string{"GenerateInvoice"},
			position: []string{"ViewAllInvoices", "GenerateInvoice"},
			user:     []string{"EditTemplate"},
		})

		names, err := r.Resolve(ctx, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"EditTemplate", "GenerateInvoice", "ViewAllInvoices"}))
	})

	It("should return an empty set for a user with no grants", func() {
		names, err := permission.NewResolver(&stubLookup{}).Resolve(ctx, 99)

		Expect(err).NotTo(HaveOccurred())
		Expect(names).NotTo(BeNil())
		Expect(names).To(BeEmpty())
	})

	It("should surface tier lookup failures", func() {
		_, err := permission.NewResolver(&stubLookup{err: errors.New("db down")}).Resolve(ctx, 1)

		Expect(err).To(MatchError(ContainSubstring("position permissions")))
	})

	It("should answer membership through HasPermission", func() {
		r := permission.NewResolver(&stubLookup{user: []string{"ManageUsers"}})

		ok, err := r.HasPermission(ctx, 1, "ManageUsers")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = r.HasPermission(ctx, 1, "manageusers")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	DescribeTable("Union",
		func(tiers [][]string, expected []string) {
			Expect(permission.Union(tiers...)).To(Equal(expected))
		},
		Entry("no tiers", [][]string{}, []string{}),
		Entry("duplicates across tiers", [][]string{{"B", "A"}, {"A"}, {"C", "B"}}, []string{"A", "B", "C"}),
		Entry("duplicates within a tier", [][]string{{"A", "A"}}, []string{"A"}),
	)
})
