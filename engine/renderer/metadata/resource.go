package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	ResourceTypeNone ResourceType = iota
	/** @brief Raw bytes. */
	ResourceTypeBinary
	/** @brief Image resource type, decoded to RGBA8. */
	ResourceTypeImage
	/** @brief SPIR-V shader code, optionally lz4 compressed on disk. */
	ResourceTypeShader
	/** @brief Mesh resource type, vertices and 16 bit indices. */
	ResourceTypeMesh
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeMesh:
		return "mesh"
	}
	return "none"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	Type     ResourceType
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/**
	 * @brief The resource data: []byte for shaders and binaries,
	 * *ImageResourceData for images and *MeshResourceData for meshes.
	 */
	Data interface{}
}
